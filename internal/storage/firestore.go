package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/gapfinder/internal/models"
)

// Firestore caps documents at 1 MiB, so payloads above chunkSize are split
// into a "chunks" subcollection under the entry's document.
const (
	chunkSize       = 900 << 10
	chunkCollection = "chunks"
)

// firestoreDoc is the stored shape of a cache entry. The original key is kept
// in the document because document ids are an encoding of it. When Chunks is
// non-zero the payload lives in that many chunk documents instead.
type firestoreDoc struct {
	Key      string    `firestore:"key"`
	Payload  []byte    `firestore:"payload"`
	StoredAt time.Time `firestore:"storedAt"`
	Chunks   int       `firestore:"chunks,omitempty"`
}

type chunkDoc struct {
	Data []byte `firestore:"data"`
}

// Firestore stores each namespace in its own collection, prefix + namespace.
type Firestore struct {
	client *firestore.Client
	prefix string
}

func NewFirestore(ctx context.Context, projectID, prefix string) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &Firestore{client: client, prefix: prefix}, nil
}

func (c *Firestore) Close() error {
	return c.client.Close()
}

func (c *Firestore) collection(namespace models.Namespace) *firestore.CollectionRef {
	return c.client.Collection(collectionName(c.prefix, namespace))
}

func collectionName(prefix string, namespace models.Namespace) string {
	return prefix + string(namespace)
}

// docID makes any key safe for use as a document id.
func docID(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (c *Firestore) Get(ctx context.Context, namespace models.Namespace, key string) (models.CacheEntry, bool, error) {
	doc, err := c.collection(namespace).Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}
	if !doc.Exists() {
		return models.CacheEntry{}, false, nil
	}
	var d firestoreDoc
	if err := doc.DataTo(&d); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("failed to unmarshal %s/%s: %w", namespace, key, err)
	}
	if err := c.loadChunks(ctx, doc.Ref, &d); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("failed to read chunks of %s/%s: %w", namespace, key, err)
	}
	return toEntry(namespace, d), true, nil
}

func (c *Firestore) Put(ctx context.Context, entry models.CacheEntry) error {
	ref := c.collection(entry.Namespace).Doc(docID(entry.Key))
	d := firestoreDoc{Key: entry.Key, Payload: entry.Payload, StoredAt: entry.StoredAt}
	chunks := splitPayload(entry.Payload, chunkSize)
	if len(chunks) > 1 {
		d.Payload = nil
		d.Chunks = len(chunks)
		slog.Debug("Splitting large cache entry", "namespace", entry.Namespace, "key", entry.Key,
			"bytes", len(entry.Payload), "chunks", len(chunks))
	}

	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		previous := 0
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil && snap.Exists() {
			var old firestoreDoc
			if err := snap.DataTo(&old); err == nil {
				previous = old.Chunks
			}
		}

		if d.Chunks > 0 {
			for i, data := range chunks {
				if err := tx.Set(chunkRef(ref, i), chunkDoc{Data: data}); err != nil {
					return err
				}
			}
		}
		for i := d.Chunks; i < previous; i++ {
			if err := tx.Delete(chunkRef(ref, i)); err != nil {
				return err
			}
		}
		return tx.Set(ref, d)
	})
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", entry.Namespace, entry.Key, err)
	}
	return nil
}

func chunkRef(parent *firestore.DocumentRef, i int) *firestore.DocumentRef {
	return parent.Collection(chunkCollection).Doc(fmt.Sprintf("%05d", i))
}

// loadChunks reassembles d.Payload when the entry was stored in chunks.
func (c *Firestore) loadChunks(ctx context.Context, ref *firestore.DocumentRef, d *firestoreDoc) error {
	if d.Chunks == 0 {
		return nil
	}
	parts := make([][]byte, d.Chunks)
	for i := range parts {
		snap, err := chunkRef(ref, i).Get(ctx)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		var cd chunkDoc
		if err := snap.DataTo(&cd); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		parts[i] = cd.Data
	}
	d.Payload = joinChunks(parts)
	return nil
}

// splitPayload cuts payload into pieces of at most size bytes. A payload that
// fits comes back as a single piece.
func splitPayload(payload []byte, size int) [][]byte {
	if len(payload) <= size {
		return [][]byte{payload}
	}
	out := make([][]byte, 0, (len(payload)+size-1)/size)
	for start := 0; start < len(payload); start += size {
		end := min(start+size, len(payload))
		out = append(out, payload[start:end])
	}
	return out
}

func joinChunks(parts [][]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func (c *Firestore) Delete(ctx context.Context, namespace models.Namespace, key string) error {
	ref := c.collection(namespace).Doc(docID(key))
	if err := c.deleteChunks(ctx, ref); err != nil {
		return fmt.Errorf("failed to delete chunks of %s/%s: %w", namespace, key, err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (c *Firestore) deleteChunks(ctx context.Context, ref *firestore.DocumentRef) error {
	iter := ref.Collection(chunkCollection).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return err
		}
	}
}

func (c *Firestore) List(ctx context.Context, namespace models.Namespace) ([]models.CacheEntry, error) {
	iter := c.collection(namespace).OrderBy("key", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	out := []models.CacheEntry{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate %s: %w", namespace, err)
		}
		var d firestoreDoc
		if err := doc.DataTo(&d); err != nil {
			slog.Warn("Skipping undecodable cache document", "namespace", namespace, "id", doc.Ref.ID, "error", err)
			continue
		}
		if err := c.loadChunks(ctx, doc.Ref, &d); err != nil {
			slog.Warn("Skipping cache document with unreadable chunks", "namespace", namespace, "id", doc.Ref.ID, "error", err)
			continue
		}
		out = append(out, toEntry(namespace, d))
	}
	return out, nil
}

func (c *Firestore) Count(ctx context.Context, namespace models.Namespace) (int, error) {
	result, err := c.collection(namespace).NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", namespace, err)
	}
	v, ok := result["all"]
	if !ok {
		return 0, fmt.Errorf("count aggregation for %s was invalid: 'all' key missing", namespace)
	}
	return countValue(v)
}

// countValue decodes an aggregation count, which arrives as *firestorepb.Value
// from the server and as int64 from some emulator versions.
func countValue(v interface{}) (int, error) {
	switch val := v.(type) {
	case int64:
		return int(val), nil
	case *firestorepb.Value:
		return int(val.GetIntegerValue()), nil
	default:
		return 0, fmt.Errorf("count aggregation has unexpected type %T", v)
	}
}

// Clear deletes every document in the namespace's collection.
func (c *Firestore) Clear(ctx context.Context, namespace models.Namespace) error {
	iter := c.collection(namespace).Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	deleted := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate %s for clearing: %w", namespace, err)
		}
		if err := c.deleteChunks(ctx, doc.Ref); err != nil {
			slog.Warn("Error deleting chunks", "namespace", namespace, "id", doc.Ref.ID, "error", err)
		}
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			slog.Warn("Error queueing delete", "namespace", namespace, "id", doc.Ref.ID, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		bulkWriter.Flush()
		slog.Debug("Cleared namespace", "namespace", namespace, "deleted", deleted)
	}
	return nil
}

// Usage sums key and payload sizes across all namespaces.
func (c *Firestore) Usage(ctx context.Context) (int64, error) {
	var total int64
	for _, ns := range models.Namespaces {
		entries, err := c.List(ctx, ns)
		if err != nil {
			return 0, err
		}
		for _, e := range entries {
			total += int64(len(e.Key) + len(e.Payload))
		}
	}
	return total, nil
}

func toEntry(namespace models.Namespace, d firestoreDoc) models.CacheEntry {
	return models.CacheEntry{
		Namespace: namespace,
		Key:       d.Key,
		Payload:   d.Payload,
		StoredAt:  d.StoredAt.UTC(),
	}
}
