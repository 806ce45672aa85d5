package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore/apiv1/firestorepb"

	"github.com/pauljones0/gapfinder/internal/models"
)

func TestCountValue(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		want     int
		wantFail bool
	}{
		{name: "int64 direct", value: int64(42), want: 42},
		{
			name: "firestorepb.Value integer",
			value: &firestorepb.Value{
				ValueType: &firestorepb.Value_IntegerValue{IntegerValue: 100},
			},
			want: 100,
		},
		{name: "unexpected type", value: "not a number", wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := countValue(tt.value)
			if (err != nil) != tt.wantFail {
				t.Fatalf("err = %v, wantFail = %v", err, tt.wantFail)
			}
			if !tt.wantFail && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDocID(t *testing.T) {
	for _, key := range []string{"snapshot", "a/b/c", "", "ключ", "__reserved__"} {
		id := docID(key)
		decoded, err := base64.RawURLEncoding.DecodeString(id)
		if err != nil {
			t.Fatalf("docID(%q) = %q is not decodable: %v", key, id, err)
		}
		if string(decoded) != key {
			t.Errorf("round trip of %q gave %q", key, decoded)
		}
		for _, r := range id {
			if r == '/' {
				t.Errorf("docID(%q) = %q contains a slash", key, id)
			}
		}
	}
}

func TestCollectionName(t *testing.T) {
	if got := collectionName("gapfinder_", models.NamespaceQueue); got != "gapfinder_sync-queue" {
		t.Errorf("collectionName = %q", got)
	}
}

func TestSplitPayload(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		chunk     int
		wantParts int
		wantLast  int
	}{
		{"empty", 0, 4, 1, 0},
		{"fits", 4, 4, 1, 4},
		{"one over", 5, 4, 2, 1},
		{"exact multiple", 12, 4, 3, 4},
		{"above document limit", 3 << 20, chunkSize, 4, 3<<20 - 3*chunkSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.size)
			for i := range payload {
				payload[i] = byte(i % 251)
			}
			parts := splitPayload(payload, tt.chunk)
			if len(parts) != tt.wantParts {
				t.Fatalf("parts = %d, want %d", len(parts), tt.wantParts)
			}
			for i, p := range parts {
				if len(p) > tt.chunk {
					t.Errorf("part %d has %d bytes, limit %d", i, len(p), tt.chunk)
				}
			}
			if got := len(parts[len(parts)-1]); got != tt.wantLast {
				t.Errorf("last part = %d bytes, want %d", got, tt.wantLast)
			}
			if !bytes.Equal(joinChunks(parts), payload) {
				t.Error("joined chunks differ from payload")
			}
		})
	}
}

// TestFirestore_Emulator runs against FIRESTORE_EMULATOR_HOST when it is set.
func TestFirestore_Emulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	fs, err := NewFirestore(ctx, "gapfinder-test", fmt.Sprintf("t%d_", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("NewFirestore: %v", err)
	}
	defer fs.Close()

	t.Run("backend suite", func(t *testing.T) {
		runBackendSuite(t, fs)
	})

	t.Run("entry above the document limit", func(t *testing.T) {
		big := make([]byte, 2*chunkSize+123)
		for i := range big {
			big[i] = byte(i % 251)
		}
		entry := models.CacheEntry{Namespace: models.NamespaceRecords, Key: "big", Payload: big, StoredAt: time.Now().UTC()}
		if err := fs.Put(ctx, entry); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, ok, err := fs.Get(ctx, models.NamespaceRecords, "big")
		if err != nil || !ok || !bytes.Equal(got.Payload, big) {
			t.Fatalf("Get = %d bytes, %v, %v", len(got.Payload), ok, err)
		}

		entry.Payload = []byte(`[]`)
		if err := fs.Put(ctx, entry); err != nil {
			t.Fatalf("Put small: %v", err)
		}
		got, _, _ = fs.Get(ctx, models.NamespaceRecords, "big")
		if string(got.Payload) != `[]` {
			t.Errorf("payload after shrink = %d bytes", len(got.Payload))
		}
		if err := fs.Delete(ctx, models.NamespaceRecords, "big"); err != nil {
			t.Errorf("Delete: %v", err)
		}
	})
}
