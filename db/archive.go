package db

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"go-emtrack/types"
)

const (
	scenariosCollection = "scenarios"
	requestsCollection  = "requests"
	partialsCollection  = "partials"
)

// Archive is the remote durable copy of saved scenarios, scoped by owner.
type Archive struct {
	client *firestore.Client
	log    *zap.Logger
	now    func() time.Time
}

func NewArchive(client *firestore.Client, log *zap.Logger) *Archive {
	if log == nil {
		log = zap.NewNop()
	}
	return &Archive{client: client, log: log.Named("archive"), now: time.Now}
}

// Save writes the header, then every request under it, then every partial
// under its request, using BulkWriter for the fan-out. It returns the new
// scenario document ID. When any write fails, the documents already queued
// are deleted so no partial tree is left in the owner's list.
func (a *Archive) Save(ctx context.Context, owner types.Identity, snap types.Snapshot) (string, error) {
	header, trees := ToDocs(snap, owner, a.now())

	scenarioRef := a.client.Collection(scenariosCollection).NewDoc()
	writes := []docWrite{{path: scenarioRef.Path, ref: scenarioRef, data: header}}
	for _, t := range trees {
		reqID := t.Request.ID
		if reqID == "" {
			reqID = uuid.NewString()
		}
		reqRef := scenarioRef.Collection(requestsCollection).Doc(reqID)
		writes = append(writes, docWrite{path: reqRef.Path, ref: reqRef, data: t.Request})
		for _, p := range t.Partials {
			partRef := reqRef.Collection(partialsCollection).Doc(strconv.Itoa(p.Position))
			writes = append(writes, docWrite{path: partRef.Path, ref: partRef, data: p})
		}
	}

	w := &bulkWriter{ctx: ctx, client: a.client, bw: a.client.BulkWriter(ctx), log: a.log}
	if err := commitWrites(w, writes); err != nil {
		return "", fmt.Errorf("archive scenario %q: %w", snap.Name, err)
	}
	a.log.Info("archived scenario",
		zap.String("id", scenarioRef.ID),
		zap.String("name", snap.Name),
		zap.Int("requests", len(trees)),
		zap.Int("writes", len(writes)))
	return scenarioRef.ID, nil
}

type docWrite struct {
	path string
	ref  *firestore.DocumentRef
	data interface{}
}

// batchWriter is the part of BulkWriter the fan-out needs.
type batchWriter interface {
	Set(w docWrite) (wait func() error, err error)
	Flush()
	Delete(writes []docWrite)
}

// commitWrites queues writes in order (header first), flushes, and checks
// every result. On failure the queued writes are deleted.
func commitWrites(w batchWriter, writes []docWrite) error {
	waits := make([]func() error, 0, len(writes))
	for i, dw := range writes {
		wait, err := w.Set(dw)
		if err != nil {
			w.Flush()
			w.Delete(writes[:i])
			return fmt.Errorf("enqueue %s: %w", dw.path, err)
		}
		waits = append(waits, wait)
	}

	w.Flush()

	for i, wait := range waits {
		if err := wait(); err != nil {
			w.Delete(writes)
			return fmt.Errorf("write %s: %w", writes[i].path, err)
		}
	}
	return nil
}

type bulkWriter struct {
	ctx    context.Context
	client *firestore.Client
	bw     *firestore.BulkWriter
	log    *zap.Logger
}

func (b *bulkWriter) Set(w docWrite) (func() error, error) {
	job, err := b.bw.Set(w.ref, w.data)
	if err != nil {
		return nil, err
	}
	return func() error {
		_, err := job.Results()
		return err
	}, nil
}

// Flush sends the queued writes and waits for them.
func (b *bulkWriter) Flush() { b.bw.End() }

// Delete removes writes children first, on a context that survives the
// caller's cancellation.
func (b *bulkWriter) Delete(writes []docWrite) {
	if len(writes) == 0 {
		return
	}
	bw := b.client.BulkWriter(context.WithoutCancel(b.ctx))
	jobs := make([]*firestore.BulkWriterJob, 0, len(writes))
	for i := len(writes) - 1; i >= 0; i-- {
		job, err := bw.Delete(writes[i].ref)
		if err != nil {
			b.log.Warn("rollback enqueue failed", zap.String("path", writes[i].path), zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}
	bw.End()
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			b.log.Warn("rollback delete failed", zap.Error(err))
		}
	}
}

// List returns the owner's archived scenarios, newest first.
func (a *Archive) List(ctx context.Context, owner types.Identity) ([]types.SavedScenario, error) {
	iter := a.client.Collection(scenariosCollection).
		Where("ownerId", "==", owner.ID).
		Documents(ctx)
	defer iter.Stop()

	var out []types.SavedScenario
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating scenarios: %w", err)
		}
		var h ScenarioDoc
		if err := doc.DataTo(&h); err != nil {
			a.log.Warn("skipping malformed scenario", zap.String("id", doc.Ref.ID), zap.Error(err))
			continue
		}
		out = append(out, h.Saved(doc.Ref.ID))
	}
	slices.SortStableFunc(out, func(x, y types.SavedScenario) int {
		return y.CreatedAt.Compare(x.CreatedAt)
	})
	return out, nil
}

// Load reads back the three levels and reassembles the snapshot. Scenarios of
// other owners are reported as not found.
func (a *Archive) Load(ctx context.Context, owner types.Identity, id string) (types.Snapshot, error) {
	scenarioRef := a.client.Collection(scenariosCollection).Doc(id)
	docSnap, err := scenarioRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Snapshot{}, fmt.Errorf("scenario %s: %w", id, types.ErrScenarioNotFound)
		}
		return types.Snapshot{}, fmt.Errorf("error getting scenario %s: %w", id, err)
	}
	var header ScenarioDoc
	if err := docSnap.DataTo(&header); err != nil {
		return types.Snapshot{}, fmt.Errorf("error converting scenario %s: %w", id, err)
	}
	if header.OwnerID != owner.ID {
		return types.Snapshot{}, fmt.Errorf("scenario %s: %w", id, types.ErrScenarioNotFound)
	}

	reqDocs, err := scenarioRef.Collection(requestsCollection).
		OrderBy("position", firestore.Asc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("error reading requests of %s: %w", id, err)
	}

	trees := make([]RequestTree, 0, len(reqDocs))
	for _, rd := range reqDocs {
		var t RequestTree
		if err := rd.DataTo(&t.Request); err != nil {
			return types.Snapshot{}, fmt.Errorf("error converting request %s: %w", rd.Ref.ID, err)
		}
		partDocs, err := rd.Ref.Collection(partialsCollection).
			OrderBy("position", firestore.Asc).
			Documents(ctx).
			GetAll()
		if err != nil {
			return types.Snapshot{}, fmt.Errorf("error reading partials of %s: %w", rd.Ref.ID, err)
		}
		for _, pd := range partDocs {
			var p PartialDoc
			if err := pd.DataTo(&p); err != nil {
				return types.Snapshot{}, fmt.Errorf("error converting partial %s: %w", pd.Ref.Path, err)
			}
			t.Partials = append(t.Partials, p)
		}
		trees = append(trees, t)
	}
	return FromDocs(header, trees), nil
}
