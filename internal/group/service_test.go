package group

import (
	"context"
	"errors"
	"testing"
)

type fakeActivity struct {
	active map[string]bool // "groupID/memberID"
}

func (f *fakeActivity) HasGroupActivity(_ context.Context, groupID, memberID string) (bool, error) {
	return f.active[groupID+"/"+memberID], nil
}

// A member who appears in the group's expense history must not be removable:
// their splits would outlive the membership and balance computation over the
// group would fail on every call.
func TestRemoveMemberWithExpenseHistory(t *testing.T) {
	activity := &fakeActivity{active: map[string]bool{"g1/bob": true}}
	svc := NewService(nil, activity)

	err := svc.RemoveMember(context.Background(), "g1", "bob")
	if !errors.Is(err, ErrMemberHasActivity) {
		t.Errorf("RemoveMember() error = %v, want ErrMemberHasActivity", err)
	}
}
