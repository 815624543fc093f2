package services

import (
	"context"
	"testing"

	"cosmic-chat/internal/domain/user"
	cosmic_errors "cosmic-chat/pkg/errors"

	"github.com/google/uuid"
)

func TestGetSnapshotUnknownUser(t *testing.T) {
	repo := &fakeUserRepo{users: map[uuid.UUID]user.User{}}
	svc := NewUserService(repo, nil, testLogger())

	if _, err := svc.GetSnapshot(context.Background(), uuid.New()); err != cosmic_errors.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProfilePartialFields(t *testing.T) {
	repo := &fakeUserRepo{users: map[uuid.UUID]user.User{}}
	svc := NewUserService(repo, nil, testLogger())
	id := addUser(repo, "ana")

	snap, err := svc.UpdateProfile(context.Background(), id, "", "http://cdn/new.png")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if snap.Name != "ana" {
		t.Fatalf("empty name must not overwrite, got %q", snap.Name)
	}
	if snap.AvatarURL != "http://cdn/new.png" {
		t.Fatalf("avatar not updated: %q", snap.AvatarURL)
	}

	snap, err = svc.UpdateProfile(context.Background(), id, "ana nova", "")
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if snap.Name != "ana nova" || snap.AvatarURL != "http://cdn/new.png" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSetOnlineTouchesRepo(t *testing.T) {
	repo := &fakeUserRepo{users: map[uuid.UUID]user.User{}}
	svc := NewUserService(repo, nil, testLogger())
	id := addUser(repo, "ana")

	if err := svc.SetOnline(context.Background(), id, true); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if !repo.users[id].IsOnline {
		t.Fatal("expected user flagged online")
	}
	if err := svc.SetOnline(context.Background(), id, false); err != nil {
		t.Fatalf("SetOnline: %v", err)
	}
	if repo.users[id].IsOnline {
		t.Fatal("expected user flagged offline")
	}
}
