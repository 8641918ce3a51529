package conversation

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llmcouncil/councild/internal/errors"
	"github.com/llmcouncil/councild/internal/logging"
)

// FileStore keeps each conversation as {dir}/{id}.json. Writes are atomic
// (temp file plus rename) and serialized by a store-wide mutex; this is a
// single-process store and does not coordinate across processes.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger *logging.Logger
}

// NewFileStore creates the directory if needed and returns a store over
// it. logger may be nil.
func NewFileStore(dir string, logger *logging.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating conversation directory")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// path maps an id to its document path. Ids are always validated first,
// so the join cannot escape the store directory.
func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validID accepts only the uuids this store generates. Anything else is
// treated as not-found rather than reaching the filesystem.
func validID(id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

func (s *FileStore) Create(ctx context.Context) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Title:     DefaultTitle,
		Messages:  []Message{},
	}
	if err := s.write(conv); err != nil {
		return nil, err
	}
	s.logger.Info("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

func (s *FileStore) List(ctx context.Context) ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "listing conversation directory")
	}

	metas := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		conv, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// A concurrently deleted or unreadable document is skipped,
			// not fatal to the listing.
			s.logger.Warn("skipping unreadable conversation", "file", name, "error", err)
			continue
		}
		metas = append(metas, Metadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(metas, func(a, b int) bool {
		return metas[a].CreatedAt.After(metas[b].CreatedAt)
	})
	return metas, nil
}

func (s *FileStore) AppendMessage(ctx context.Context, id string, msg Message) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(id)
	if err != nil {
		return nil, err
	}
	conv.Messages = append(conv.Messages, msg)
	if err := s.write(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *FileStore) SetTitle(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.read(id)
	if err != nil {
		return err
	}
	conv.Title = title
	return s.write(conv)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validID(id) {
		return errors.ErrConversationNotFound
	}
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return errors.ErrConversationNotFound
		}
		return errors.Wrap(err, "deleting conversation")
	}
	s.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

// read loads one document. Callers hold the mutex.
func (s *FileStore) read(id string) (*Conversation, error) {
	if !validID(id) {
		return nil, errors.ErrConversationNotFound
	}
	raw, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrConversationNotFound
		}
		return nil, errors.Wrap(err, "reading conversation")
	}
	var conv Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, errors.Wrapf(err, "decoding conversation %s", id)
	}
	return &conv, nil
}

// write stores one document atomically. Callers hold the mutex.
func (s *FileStore) write(conv *Conversation) error {
	raw, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding conversation")
	}

	tmp, err := os.CreateTemp(s.dir, "."+conv.ID+"-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "writing conversation")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmp.Name(), s.path(conv.ID)); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "replacing conversation")
	}
	return nil
}

var _ Store = (*FileStore)(nil)
