package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultbox/emts/internal/models"
)

func TestQueryRecipientUsernameIntersectsTextCandidates(t *testing.T) {
	ms := openTestStore(t, 1<<30)

	toCarol, err := ms.Insert(envelope("alice@example.com", "carol@example.com", "budget review", "body"))
	require.NoError(t, err)
	toDave, err := ms.Insert(envelope("alice@example.com", "dave@example.com", "budget review", "body"))
	require.NoError(t, err)

	page := ms.Query(models.Filter{RecipientUsername: "carol@example.com", Search: "budget"}, 1, 10, "", "")
	require.True(t, containsID(page.Items, toCarol))
	require.False(t, containsID(page.Items, toDave), "recipient scope must exclude messages to a different recipient")
}

func TestQueryRecipientUsernameStandalone(t *testing.T) {
	ms := openTestStore(t, 1<<30)
	id, err := ms.Insert(envelope("alice@example.com", "carol@example.com", "subj", "body"))
	require.NoError(t, err)

	page := ms.Query(models.Filter{RecipientUsername: "carol@example.com"}, 1, 10, "", "")
	require.True(t, containsID(page.Items, id))
}

func TestQueryIsReadOnlyFilterMatchesAllMessages(t *testing.T) {
	ms := openTestStore(t, 1<<30)
	id, err := ms.Insert(envelope("a@example.com", "b@example.com", "subj", "body"))
	require.NoError(t, err)

	unread := false
	page := ms.Query(models.Filter{IsRead: &unread}, 1, 10, "", "")
	require.True(t, containsID(page.Items, id), "an is_read-only filter must treat the candidate set as every message")
}

func TestQueryEmptyTokenizationReturnsEmptyPage(t *testing.T) {
	ms := openTestStore(t, 1<<30)
	_, err := ms.Insert(envelope("a@example.com", "b@example.com", "subj", "body"))
	require.NoError(t, err)

	page := ms.Query(models.Filter{Search: "!!"}, 1, 10, "", "")
	require.Empty(t, page.Items)
	require.Equal(t, 0, page.TotalItems)
}

func TestQueryAdvancedIsReadOverride(t *testing.T) {
	ms := openTestStore(t, 1<<30)
	id, err := ms.Insert(envelope("a@example.com", "b@example.com", "subj", "body"))
	require.NoError(t, err)
	require.True(t, ms.MarkRead(id, "", true))

	page := ms.Query(models.Filter{Advanced: "is_read:true"}, 1, 10, "", "")
	require.True(t, containsID(page.Items, id))

	page2 := ms.Query(models.Filter{Advanced: "is_read:false"}, 1, 10, "", "")
	require.False(t, containsID(page2.Items, id))
}

func TestQueryPagination(t *testing.T) {
	ms := openTestStore(t, 1<<30)
	for i := 0; i < 5; i++ {
		env := envelope("a@example.com", "b@example.com", "subj", "shared body text")
		env.ArrivalTime = "2026-01-01T00:00:0" + string(rune('0'+i)) + ".000Z"
		require.NoError(t, ms.InsertWithId(string(rune('a'+i)), env))
	}

	page1 := ms.Query(models.Filter{}, 1, 2, "", "")
	require.Len(t, page1.Items, 2)
	require.Equal(t, 5, page1.TotalItems)
	require.Equal(t, 3, page1.TotalPages)

	page3 := ms.Query(models.Filter{}, 3, 2, "", "")
	require.Len(t, page3.Items, 1)
}

func TestBodySnippetStripsTagsAndTruncates(t *testing.T) {
	got := bodySnippet("<p>Hello   <b>world</b></p>")
	require.Equal(t, "Hello world", got)

	long := ""
	for i := 0; i < 150; i++ {
		long += "a"
	}
	truncated := bodySnippet(long)
	require.Equal(t, 101, len([]rune(truncated))) // 100 chars + ellipsis
	require.True(t, []rune(truncated)[100] == '…')
}
