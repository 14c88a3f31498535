package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pliu/chatvideo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupMessages(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, st, "alice", "pw", true)
	bob := createUser(t, st, "bob", "pw", true)
	outsider := createUser(t, st, "mallory", "pw", true)
	handler := &GroupHandler{Store: st}

	g := &models.Group{Name: "team", CreatedBy: alice.ID}
	require.NoError(t, st.CreateGroup(ctx, g, []int64{bob.ID}))
	require.NoError(t, st.CreateGroupMessage(ctx, &models.GroupMessage{GroupID: g.ID, SenderID: bob.ID, Content: strPtr("hello team")}))

	get := func(userID int64, groupID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/groups/"+groupID+"/messages", nil)
		req = mux.SetURLVars(asUser(req, userID), map[string]string{"group_id": groupID})
		rr := httptest.NewRecorder()
		handler.GetMessages(rr, req)
		return rr
	}

	rr := get(alice.ID, fmt.Sprint(g.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	var views []models.GroupMessageView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "bob", views[0].Sender.Username)

	assert.Equal(t, http.StatusForbidden, get(outsider.ID, fmt.Sprint(g.ID)).Code)
	assert.Equal(t, http.StatusForbidden, get(alice.ID, "999").Code)
	assert.Equal(t, http.StatusBadRequest, get(alice.ID, "abc").Code)
}
