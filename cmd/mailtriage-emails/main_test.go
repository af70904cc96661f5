package main

import (
	"context"
	"testing"

	"github.com/joshsymonds/mailtriage/internal/gmail"
)

type fakeClient struct {
	listQuery   string
	listToken   string
	listSize    int
	getID       gmail.MessageID
	getFormat   gmail.Format
	trashed     []gmail.MessageID
	deleted     []gmail.MessageID
	marked      []gmail.MessageID
	markedRead  bool
	modified    []gmail.MessageID
	addNames    []string
	removeNames []string
}

func (f *fakeClient) List(ctx context.Context, q gmail.Query, pageToken string, pageSize int) (gmail.ListPage, error) {
	_ = ctx
	f.listQuery = q.Raw
	f.listToken = pageToken
	f.listSize = pageSize
	return gmail.ListPage{}, nil
}

func (f *fakeClient) Get(ctx context.Context, id gmail.MessageID, format gmail.Format) (gmail.Message, error) {
	_ = ctx
	f.getID = id
	f.getFormat = format
	return gmail.Message{ID: id, Headers: map[string]string{}}, nil
}

func (f *fakeClient) LabelID(ctx context.Context, nameOrID string) (gmail.LabelID, error) {
	_ = ctx
	return gmail.LabelID(nameOrID), nil
}

func (f *fakeClient) LabelName(ctx context.Context, id gmail.LabelID) (string, error) {
	_ = ctx
	return string(id), nil
}

func (f *fakeClient) BatchTrash(ctx context.Context, ids []gmail.MessageID) error {
	_ = ctx
	f.trashed = append(f.trashed, ids...)
	return nil
}

func (f *fakeClient) BatchMark(ctx context.Context, ids []gmail.MessageID, read bool) error {
	_ = ctx
	f.marked = append(f.marked, ids...)
	f.markedRead = read
	return nil
}

func (f *fakeClient) BatchModifyLabels(ctx context.Context, ids []gmail.MessageID, addNames, removeNames []string) error {
	_ = ctx
	f.modified = append(f.modified, ids...)
	f.addNames = addNames
	f.removeNames = removeNames
	return nil
}

func (f *fakeClient) BatchDelete(ctx context.Context, ids []gmail.MessageID) error {
	_ = ctx
	f.deleted = append(f.deleted, ids...)
	return nil
}

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name    string
		cfg     emailsConfig
		want    mode
		wantErr bool
	}{
		{name: "list", cfg: emailsConfig{list: true}, want: modeList},
		{name: "get", cfg: emailsConfig{get: "m1"}, want: modeGet},
		{name: "trash", cfg: emailsConfig{trash: true}, want: modeMutate},
		{name: "mark", cfg: emailsConfig{mark: "read"}, want: modeMutate},
		{name: "labels-combined", cfg: emailsConfig{addLabels: "A", removeLabels: "B"}, want: modeMutate},
		{name: "nothing", cfg: emailsConfig{}, wantErr: true},
		{name: "list-and-trash", cfg: emailsConfig{list: true, trash: true}, wantErr: true},
		{name: "get-and-delete", cfg: emailsConfig{get: "m1", del: true}, wantErr: true},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got, err := selectMode(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("selectMode = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSelectOperationDispatch(t *testing.T) {
	ids := []gmail.MessageID{"m1", "m2"}

	t.Run("trash", func(t *testing.T) {
		fake := &fakeClient{}
		op, err := selectOperation(emailsConfig{trash: true})
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if err := op.exec(context.Background(), fake, ids); err != nil {
			t.Fatalf("exec failed: %v", err)
		}
		if len(fake.trashed) != 2 {
			t.Fatalf("expected 2 trashed, got %v", fake.trashed)
		}
	})

	t.Run("mark-unread", func(t *testing.T) {
		fake := &fakeClient{}
		op, err := selectOperation(emailsConfig{mark: "unread"})
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if err := op.exec(context.Background(), fake, ids); err != nil {
			t.Fatalf("exec failed: %v", err)
		}
		if len(fake.marked) != 2 || fake.markedRead {
			t.Fatalf("expected unread marks, got %v read=%v", fake.marked, fake.markedRead)
		}
	})

	t.Run("mark-invalid", func(t *testing.T) {
		if _, err := selectOperation(emailsConfig{mark: "starred"}); err == nil {
			t.Fatalf("expected error for invalid mark state")
		}
	})

	t.Run("relabel", func(t *testing.T) {
		fake := &fakeClient{}
		op, err := selectOperation(emailsConfig{addLabels: "Work", removeLabels: "Inbox-Zero"})
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if err := op.exec(context.Background(), fake, ids); err != nil {
			t.Fatalf("exec failed: %v", err)
		}
		if len(fake.addNames) != 1 || fake.addNames[0] != "Work" {
			t.Fatalf("unexpected add names: %v", fake.addNames)
		}
		if len(fake.removeNames) != 1 || fake.removeNames[0] != "Inbox-Zero" {
			t.Fatalf("unexpected remove names: %v", fake.removeNames)
		}
	})

	t.Run("delete", func(t *testing.T) {
		fake := &fakeClient{}
		op, err := selectOperation(emailsConfig{del: true})
		if err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if err := op.exec(context.Background(), fake, ids); err != nil {
			t.Fatalf("exec failed: %v", err)
		}
		if len(fake.deleted) != 2 {
			t.Fatalf("expected 2 deleted, got %v", fake.deleted)
		}
	})
}

func TestListMessagesPassesOptions(t *testing.T) {
	fake := &fakeClient{}
	cfg := emailsConfig{query: "in:inbox", pageToken: "tok", maxResults: 50, output: "human"}
	if err := listMessages(context.Background(), fake, cfg); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if fake.listQuery != "in:inbox" || fake.listToken != "tok" || fake.listSize != 50 {
		t.Fatalf("unexpected list call: %q %q %d", fake.listQuery, fake.listToken, fake.listSize)
	}
}

func TestGetMessageFormat(t *testing.T) {
	fake := &fakeClient{}
	cfg := emailsConfig{get: "m1", format: "full", output: "human"}
	if err := getMessage(context.Background(), fake, cfg); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fake.getID != "m1" || fake.getFormat != gmail.FormatFull {
		t.Fatalf("unexpected get call: %q %q", fake.getID, fake.getFormat)
	}

	cfg.format = "everything"
	if err := getMessage(context.Background(), fake, cfg); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}
