package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pfrederiksen/race-results/internal/order"
)

const bookFile = "orders.json"

// Storage handles persistence of the order book
type Storage struct {
	dataDir string
}

// New creates a new Storage instance
func New(dataDir string) (*Storage, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	return &Storage{
		dataDir: dataDir,
	}, nil
}

// Path returns the location of the order book file
func (s *Storage) Path() string {
	return filepath.Join(s.dataDir, bookFile)
}

// LoadBook loads the order book from disk
func (s *Storage) LoadBook() (*order.Book, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			// First run, start with an empty book
			return order.NewBook(), nil
		}
		return nil, fmt.Errorf("reading store: %w", err)
	}

	var book order.Book
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("parsing store: %w", err)
	}

	if book.Orders == nil {
		book.Orders = make(map[string]*order.Record)
	}
	if book.ChangeLog == nil {
		book.ChangeLog = make([]*order.Change, 0)
	}

	return &book, nil
}

// SaveBook writes the order book to disk. The file is replaced atomically so
// an interrupted run never leaves a truncated store behind.
func (s *Storage) SaveBook(book *order.Book) error {
	book.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, bookFile+".*")
	if err != nil {
		return fmt.Errorf("writing store: %w", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("writing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("writing store: %w", err)
	}

	return nil
}

// GetRecord retrieves one order by number
func (s *Storage) GetRecord(number string) (*order.Record, error) {
	book, err := s.LoadBook()
	if err != nil {
		return nil, fmt.Errorf("loading store: %w", err)
	}

	if rec, exists := book.Orders[number]; exists {
		return rec, nil
	}

	return nil, fmt.Errorf("order not found: %s", number)
}

// LoadOrders reads a storefront export: a JSON array of orders
func LoadOrders(path string) ([]order.Order, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading orders: %w", err)
	}

	var orders []order.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("parsing orders: %w", err)
	}

	return orders, nil
}
