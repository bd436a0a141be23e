package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"sort"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/chunktypes"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/errors"
	"github.com/input-output-hk/catalyst-forge-libs/chunkupload/internal/store"
)

// Verify that MemoryStore implements the Store interface
var _ store.Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory multipart store that records every call.
// Hooks run before the default behavior; a non-nil error from a hook is
// returned as the store's failure.
type MemoryStore struct {
	// MinPartSize, if set, makes completion reject non-final parts below it
	MinPartSize int64

	// RejectEmptyCompletion makes completion with no parts fail, as S3 does
	RejectEmptyCompletion bool

	CreateHook   func(ctx context.Context, input *store.CreateInput) error
	UploadHook   func(ctx context.Context, input *store.PartInput) error
	CompleteHook func(ctx context.Context, parts []chunktypes.PartResult) error
	AbortHook    func(ctx context.Context, uploadID string) error

	mu        sync.Mutex
	nextID    int
	uploads   map[string]*memoryUpload
	objects   map[string][]byte
	creates   []store.CreateInput
	completes [][]chunktypes.PartResult
	aborts    []string
}

type memoryUpload struct {
	bucket string
	key    string
	parts  map[int32][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		uploads: make(map[string]*memoryUpload),
		objects: make(map[string][]byte),
	}
}

// CreateMultipartUpload records the call and issues a sequential upload id.
func (m *MemoryStore) CreateMultipartUpload(ctx context.Context, input *store.CreateInput) (string, error) {
	if m.CreateHook != nil {
		if err := m.CreateHook(ctx, input); err != nil {
			return "", errors.NewObjectError("createMultipartUpload", errors.CodeCreateFailed,
				input.Bucket, input.Key, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := fmt.Sprintf("mem-upload-%d", m.nextID)
	m.uploads[id] = &memoryUpload{
		bucket: input.Bucket,
		key:    input.Key,
		parts:  make(map[int32][]byte),
	}
	m.creates = append(m.creates, *input)
	return id, nil
}

// UploadPart stores a copy of the part body and returns its MD5 as ETag.
func (m *MemoryStore) UploadPart(ctx context.Context, input *store.PartInput) (string, error) {
	if m.UploadHook != nil {
		if err := m.UploadHook(ctx, input); err != nil {
			return "", errors.NewObjectError("uploadPart", errors.CodePartUploadFailed,
				input.Bucket, input.Key, err).WithUploadID(input.UploadID).WithPart(input.PartNumber)
		}
	}

	body := bytes.Clone(input.Body)
	if body == nil {
		body = []byte{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.uploads[input.UploadID]
	if !ok {
		return "", errors.NewObjectError("uploadPart", errors.CodePartUploadFailed,
			input.Bucket, input.Key, errors.ErrNoSuchUpload).WithUploadID(input.UploadID)
	}
	u.parts[input.PartNumber] = body
	return PartETag(body), nil
}

// CompleteMultipartUpload validates the part list and assembles the object.
func (m *MemoryStore) CompleteMultipartUpload(
	ctx context.Context,
	bucket, key, uploadID string,
	parts []chunktypes.PartResult,
) (*store.Completed, error) {
	recorded := make([]chunktypes.PartResult, len(parts))
	copy(recorded, parts)
	m.mu.Lock()
	m.completes = append(m.completes, recorded)
	m.mu.Unlock()

	fail := func(err error) (*store.Completed, error) {
		return nil, errors.NewObjectError("completeMultipartUpload", errors.CodeCompletionFailed,
			bucket, key, err).WithUploadID(uploadID)
	}

	if m.CompleteHook != nil {
		if err := m.CompleteHook(ctx, parts); err != nil {
			return fail(err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.uploads[uploadID]
	if !ok {
		return fail(errors.ErrNoSuchUpload)
	}
	if len(parts) == 0 && m.RejectEmptyCompletion {
		return fail(fmt.Errorf("%w: no parts", errors.ErrInvalidPart))
	}

	var object []byte
	for i, p := range parts {
		if i > 0 && p.PartNumber <= parts[i-1].PartNumber {
			return fail(fmt.Errorf("%w: part %d out of order", errors.ErrInvalidPart, p.PartNumber))
		}
		data, ok := u.parts[p.PartNumber]
		if !ok || PartETag(data) != p.ETag {
			return fail(fmt.Errorf("%w: part %d", errors.ErrInvalidPart, p.PartNumber))
		}
		if m.MinPartSize > 0 && i < len(parts)-1 && int64(len(data)) < m.MinPartSize {
			return fail(fmt.Errorf("%w: part %d has %d bytes", errors.ErrEntityTooSmall, p.PartNumber, len(data)))
		}
		object = append(object, data...)
	}
	if object == nil {
		object = []byte{}
	}

	delete(m.uploads, uploadID)
	m.objects[bucket+"/"+key] = object
	return &store.Completed{
		ETag:     fmt.Sprintf(`"%s-%d"`, PartETag(object), len(parts)),
		Location: fmt.Sprintf("memory://%s/%s", bucket, key),
	}, nil
}

// AbortMultipartUpload records the call and drops the upload's parts.
func (m *MemoryStore) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	m.mu.Lock()
	m.aborts = append(m.aborts, uploadID)
	m.mu.Unlock()

	if m.AbortHook != nil {
		if err := m.AbortHook(ctx, uploadID); err != nil {
			return errors.NewObjectError("abortMultipartUpload", errors.CodeAbortFailed,
				bucket, key, err).WithUploadID(uploadID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, uploadID)
	return nil
}

// Object returns a completed object.
func (m *MemoryStore) Object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	return data, ok
}

// Creates returns the recorded create calls.
func (m *MemoryStore) Creates() []store.CreateInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.CreateInput(nil), m.creates...)
}

// Completes returns the part lists of every completion attempt.
func (m *MemoryStore) Completes() [][]chunktypes.PartResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]chunktypes.PartResult(nil), m.completes...)
}

// Aborts returns the upload ids of every abort call.
func (m *MemoryStore) Aborts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.aborts...)
}

// PartNumbers returns the sorted part numbers stored for an open upload.
func (m *MemoryStore) PartNumbers(uploadID string) []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.uploads[uploadID]
	if !ok {
		return nil
	}
	numbers := make([]int32, 0, len(u.parts))
	for n := range u.parts {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	return numbers
}

// PartETag returns the quoted MD5 hex digest S3 uses as a part ETag.
func PartETag(data []byte) string {
	return fmt.Sprintf(`"%x"`, md5.Sum(data))
}
