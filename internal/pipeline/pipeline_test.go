package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Farras8/cek-pohon-app/internal/events"
	"github.com/Farras8/cek-pohon-app/internal/ingest"
	"github.com/Farras8/cek-pohon-app/internal/model"
	"github.com/Farras8/cek-pohon-app/internal/store"
)

const threeRows = "asset_id,division,block,block_id,latitude,longitude\n" +
	"IPSRES0101A050001,01,A05,5,1.5,2.5\n" +
	"IPSRES0101A050003,01,A05,5,1.5,2.5\n" +
	"IPSRES0101A050004,01,A05,5,1.6,2.5\n"

func newPipeline(s store.Store) *Pipeline {
	return New(s, nil, zerolog.Nop())
}

func TestRunEndToEnd(t *testing.T) {
	mem := store.NewMemory()
	p := newPipeline(mem)
	res, err := p.Run(context.Background(), Upload{Filename: "trees.csv", Data: []byte(threeRows)})
	require.NoError(t, err)
	assert.NotEmpty(t, res.UploadID)
	assert.Equal(t, 3, res.RowsRead)
	assert.Equal(t, 3, res.RowsKept)
	assert.Equal(t, 1, res.TotalMissing)
	assert.Equal(t, map[string]int{"01::A05": 1}, res.ByBlock)
	assert.Equal(t, 1, res.DuplicateCoordinates)

	miss, err := mem.ListMissing(context.Background())
	require.NoError(t, err)
	require.Len(t, miss, 1)
	assert.Equal(t, "0002", miss[0].TreeNumber)
	assert.Equal(t, "IPSRES0101A050002", miss[0].AssetID)
	n, _ := mem.CountUploaded(context.Background())
	assert.Equal(t, 3, n)
}

func TestRunHTMLInput(t *testing.T) {
	doc := `<html><table>
<tr><th>Asset ID</th><th>Division</th><th>Block Name</th><th>Block ID</th></tr>
<tr><td>IPSRES0102B070010</td><td>2</td><td>B07</td><td>7</td></tr>
<tr><td>IPSRES0102B070013</td><td>2</td><td>B07</td><td>7</td></tr>
</table></html>`
	mem := store.NewMemory()
	res, err := newPipeline(mem).Run(context.Background(), Upload{Filename: "export.xls", Data: []byte(doc)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalMissing)
	miss, _ := mem.ListMissing(context.Background())
	require.Len(t, miss, 2)
	assert.Equal(t, "IPSRES0102B070011", miss[0].AssetID)
	assert.Equal(t, "02", miss[0].Division)
}

func TestRunNoRowsKeepsPriorState(t *testing.T) {
	mem := store.NewMemory()
	p := newPipeline(mem)
	_, err := p.Run(context.Background(), Upload{Data: []byte(threeRows)})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), Upload{Data: []byte("asset_id,division\nX,01\n")})
	require.ErrorIs(t, err, ErrNoRows)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageNormalizing, se.Stage)

	n, _ := mem.CountUploaded(context.Background())
	assert.Equal(t, 3, n)
}

func TestRunNoTable(t *testing.T) {
	_, err := newPipeline(store.NewMemory()).Run(context.Background(), Upload{Data: []byte("<html><body>nope</body></html>")})
	assert.ErrorIs(t, err, ingest.ErrNoTableFound)
}

type failingStore struct {
	*store.Memory
}

type failingReplacement struct {
	store.Replacement
}

func (f failingStore) BeginReplace(ctx context.Context) (store.Replacement, error) {
	r, err := f.Memory.BeginReplace(ctx)
	if err != nil {
		return nil, err
	}
	return failingReplacement{r}, nil
}

func (failingReplacement) PutMissing(context.Context, []model.TreeRecord) error {
	return errors.New("disk full")
}

func TestRunFailureLeavesPriorStateIntact(t *testing.T) {
	mem := store.NewMemory()
	_, err := newPipeline(mem).Run(context.Background(), Upload{Data: []byte(threeRows)})
	require.NoError(t, err)
	before, _ := mem.ListUploaded(context.Background())
	beforeMissing, _ := mem.ListMissing(context.Background())

	other := "asset_id,division,block,block_id\nIPSRES0103B090001,03,C09,9\nIPSRES0103B090009,03,C09,9\n"
	_, err = newPipeline(failingStore{mem}).Run(context.Background(), Upload{Data: []byte(other)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StagePersistingMissing, se.Stage)

	after, _ := mem.ListUploaded(context.Background())
	afterMissing, _ := mem.ListMissing(context.Background())
	assert.Equal(t, before, after)
	assert.Equal(t, beforeMissing, afterMissing)
}

func TestRunBusy(t *testing.T) {
	p := newPipeline(store.NewMemory())
	unlock, err := p.Locker.TryLock(context.Background())
	require.NoError(t, err)
	_, err = p.Run(context.Background(), Upload{Data: []byte(threeRows)})
	assert.ErrorIs(t, err, ErrBusy)
	unlock()
	unlock()
	_, err = p.Run(context.Background(), Upload{Data: []byte(threeRows)})
	assert.NoError(t, err)
}

func TestRunPublishesStages(t *testing.T) {
	b := events.NewMemory()
	ch := make(chan model.StageEvent, 32)
	sub := b.Subscribe(events.TopicPipeline)
	defer b.Unsubscribe(events.TopicPipeline, sub)

	p := newPipeline(store.NewMemory())
	p.Events = b
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for evt := range sub {
			ch <- evt
			if evt.Stage == string(StageIdle) {
				return
			}
		}
	}()
	res, err := p.Run(context.Background(), Upload{Data: []byte(threeRows)})
	require.NoError(t, err)
	wg.Wait()
	close(ch)

	var stages []string
	for evt := range ch {
		assert.Equal(t, res.UploadID, evt.UploadID)
		stages = append(stages, evt.Stage)
	}
	assert.Equal(t, []string{"reading", "normalizing", "persisting_uploads", "reconciling", "persisting_missing", "reporting", "idle"}, stages)
}

type recordNotifier struct {
	mu    sync.Mutex
	types []string
}

func (r *recordNotifier) Notify(eventType string, data any) {
	r.mu.Lock()
	r.types = append(r.types, eventType)
	r.mu.Unlock()
}

type recordArchive struct{ keys []string }

func (r *recordArchive) Put(ctx context.Context, id, name string, data []byte) (string, error) {
	r.keys = append(r.keys, id+"/"+name)
	return id + "/" + name, nil
}

func TestRunNotifiesAndArchives(t *testing.T) {
	p := newPipeline(store.NewMemory())
	rn := &recordNotifier{}
	ra := &recordArchive{}
	p.Notifier, p.Archive = rn, ra
	res, err := p.Run(context.Background(), Upload{Filename: "a.csv", Data: []byte(threeRows)})
	require.NoError(t, err)
	_, err = p.Run(context.Background(), Upload{Filename: "b.csv", Data: []byte("x\n")})
	require.Error(t, err)
	assert.Equal(t, []string{"upload.completed", "upload.failed"}, rn.types)
	require.Len(t, ra.keys, 2)
	assert.True(t, strings.HasPrefix(ra.keys[0], res.UploadID))
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	a := NewRedisLocker(rdb, time.Minute)
	b := NewRedisLocker(rdb, time.Minute)
	unlock, err := a.TryLock(context.Background())
	require.NoError(t, err)
	_, err = b.TryLock(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, mr.Exists("cekpohon:lock:upload"))

	unlock()
	assert.False(t, mr.Exists("cekpohon:lock:upload"))
	unlock2, err := b.TryLock(context.Background())
	require.NoError(t, err)
	unlock2()
}

func TestRedisLockerExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	l := NewRedisLocker(rdb, time.Second)
	stale, err := l.TryLock(context.Background())
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	fresh, err := l.TryLock(context.Background())
	require.NoError(t, err)
	stale()
	assert.True(t, mr.Exists("cekpohon:lock:upload"), "stale unlock must not release a newer holder")
	fresh()
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "file", Message: "required"}
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "validation failed for field file: required", err.Error())
}
