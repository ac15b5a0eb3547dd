package service

import (
	"io"
	"sync"

	"wa-blaster/internal/helper"
	"wa-blaster/internal/model"
)

// Campaign is the working set the API builds up before a blast: the normalized contact
// table plus the message and attachment registry.
type Campaign struct {
	Registry *Registry

	mu      sync.RWMutex
	table   *model.ContactTable
	column  string
	numbers []string
	stats   helper.NormalizeStats
}

func NewCampaign() *Campaign {
	return &Campaign{Registry: NewRegistry()}
}

// LoadContacts parses a contact file, normalizes column in place and replaces the current table.
func (c *Campaign) LoadContacts(filename string, r io.Reader, column string) (helper.NormalizeStats, error) {
	table, err := model.ReadContactsFile(filename, r)
	if err != nil {
		return helper.NormalizeStats{}, err
	}
	return c.SetContacts(table, column), nil
}

func (c *Campaign) SetContacts(table *model.ContactTable, column string) helper.NormalizeStats {
	numbers, stats := helper.NormalizeNumbers(table, column)

	c.mu.Lock()
	c.table = table
	c.column = column
	c.numbers = numbers
	c.stats = stats
	c.mu.Unlock()
	return stats
}

func (c *Campaign) Numbers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.numbers...)
}

// Columns lists the header of the loaded table, nil before any upload.
func (c *Campaign) Columns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.table == nil {
		return nil
	}
	return append([]string(nil), c.table.Columns...)
}

func (c *Campaign) Stats() helper.NormalizeStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Table returns a copy of the normalized table, or nil.
func (c *Campaign) Table() *model.ContactTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.table == nil {
		return nil
	}
	out := &model.ContactTable{
		Columns: append([]string(nil), c.table.Columns...),
		Rows:    make([][]string, len(c.table.Rows)),
	}
	for i, row := range c.table.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Job snapshots the campaign into a blast job.
func (c *Campaign) Job(id string) BlastJob {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job := BlastJob{
		ID:          id,
		Numbers:     append([]string(nil), c.numbers...),
		Messages:    c.Registry.Messages(),
		Attachments: c.Registry.Attachments(),
		Contacts:    make(map[string]map[string]string, len(c.numbers)),
	}
	if c.table != nil {
		col := c.table.Column(c.column)
		for i := range c.table.Rows {
			job.Contacts[c.table.Value(i, col)] = c.table.RowMap(i)
		}
	}
	return job
}

// Reset drops contacts, messages and attachments.
func (c *Campaign) Reset() {
	c.mu.Lock()
	c.table = nil
	c.column = ""
	c.numbers = nil
	c.stats = helper.NormalizeStats{}
	c.mu.Unlock()
	c.Registry.Reset()
}
