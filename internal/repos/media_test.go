package repos

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/storycut-backend/internal/types"
)

func TestMediaUpdateFieldsIfStatus_DeletedRowStaysDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewMediaRepo(testDB(t), testLogger(t))

	media := &types.Media{
		ID:        uuid.New(),
		SourceURI: "gs://bucket/source.mp4",
		Status:    types.MediaStatusRegistered,
	}
	if _, err := repo.Create(ctx, nil, []*types.Media{media}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.UpdateFields(ctx, nil, media.ID, map[string]interface{}{
		"status": types.MediaStatusDeleted,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}

	// The prober's guarded writes must lose the race against a delete.
	for _, updates := range []map[string]interface{}{
		{"status": types.MediaStatusProbing},
		{"status": types.MediaStatusReady, "duration_seconds": 12.5},
	} {
		ok, err := repo.UpdateFieldsIfStatus(ctx, nil, media.ID,
			[]string{types.MediaStatusRegistered, types.MediaStatusProbing, types.MediaStatusFailed, types.MediaStatusReady},
			updates)
		if err != nil {
			t.Fatalf("UpdateFieldsIfStatus: %v", err)
		}
		if ok {
			t.Fatalf("guard matched a deleted row for %v", updates)
		}
	}

	row, err := repo.GetByID(ctx, nil, media.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row == nil || row.Status != types.MediaStatusDeleted {
		t.Fatalf("deleted media resurrected: %+v", row)
	}
}

func TestMediaSoftDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	repo := NewMediaRepo(db, testLogger(t))

	media := &types.Media{
		ID:        uuid.New(),
		SourceURI: "gs://bucket/source.mp4",
		Status:    types.MediaStatusReady,
	}
	if _, err := repo.Create(ctx, nil, []*types.Media{media}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deleted, err := repo.SoftDelete(ctx, nil, media.ID)
	if err != nil || !deleted {
		t.Fatalf("SoftDelete = %v, %v", deleted, err)
	}
	again, err := repo.SoftDelete(ctx, nil, media.ID)
	if err != nil {
		t.Fatalf("SoftDelete again: %v", err)
	}
	if again {
		t.Fatal("second SoftDelete reported a delete")
	}
}
