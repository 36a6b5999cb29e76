package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/aretw0/conductor/pkg/domain"
)

const ext = ".jsonl"

var validID = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]*$`)

// Store implements ports.HistoryStore using the local filesystem.
// Each session is a JSON Lines file with one turn per line.
type Store struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".conductor/sessions".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".conductor", "sessions")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("sessionID cannot be empty")
	}
	if !validID.MatchString(sessionID) {
		return "", fmt.Errorf("invalid sessionID %q", sessionID)
	}
	return filepath.Join(s.BasePath, sessionID+ext), nil
}

// Append writes turns to the end of the session file and fsyncs it.
// All turns of one call are written with a single write.
func (s *Store) Append(ctx context.Context, sessionID string, turns ...domain.Turn) error {
	destPath, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	for _, turn := range turns {
		if err := enc.Encode(turn); err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	f, err := os.OpenFile(destPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(buf.String()); err != nil {
		return fmt.Errorf("failed to append to session file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to fsync session file: %w", err)
	}
	return f.Close()
}

// Load reads every turn of a session.
func (s *Store) Load(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	filePath, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	defer f.Close()

	var turns []domain.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var turn domain.Turn
		if err := json.Unmarshal(scanner.Bytes(), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn at line %d: %w", line, err)
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan session file: %w", err)
	}
	return turns, nil
}

// List returns all session IDs found in the base path.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ext {
			sessions = append(sessions, strings.TrimSuffix(entry.Name(), ext))
		}
	}
	slices.Sort(sessions)
	return sessions, nil
}
