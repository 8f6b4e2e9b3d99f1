package mailbox

import (
	"fmt"

	"github.com/emersion/go-imap"
	sortthread "github.com/emersion/go-imap-sortthread"
	"github.com/emersion/go-imap/client"
)

// SortedUIDs returns the UIDs of every message in the selected folder,
// newest first, using the server-side SORT extension. The incremental
// loader slices this list into pages.
func SortedUIDs(c *client.Client) ([]uint32, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	sortClient := sortthread.NewSortClient(c)

	criteria := imap.NewSearchCriteria()
	uids, err := sortClient.UidSort([]sortthread.SortCriterion{
		{Field: sortthread.SortDate, Reverse: true},
	}, criteria)
	if err != nil {
		return nil, fmt.Errorf("SORT command returned error: %w", err)
	}

	return uids, nil
}

// FetchMessages fetches envelope, flags, body structure, and full body for
// the given UIDs.
func FetchMessages(c *client.Client, uids []uint32) ([]*imap.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	if len(uids) == 0 {
		return []*imap.Message{}, nil
	}

	seqSet := new(imap.SeqSet)
	for _, uid := range uids {
		seqSet.AddNum(uid)
	}

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchBodyStructure,
		imap.FetchFlags,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var result []*imap.Message
	for msg := range messages {
		result = append(result, msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return result, nil
}
