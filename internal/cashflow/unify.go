package cashflow

import (
	"bytes"
	"context"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Unifier fans out to the readers and merges their events.
type Unifier struct {
	readers []Reader
}

// NewUnifier builds a Unifier over the given readers.
func NewUnifier(readers ...Reader) *Unifier {
	return &Unifier{readers: readers}
}

// NewSourceUnifier wires the ledger, receivable and payable readers over repo.
func NewSourceUnifier(repo SourceRepository) *Unifier {
	return NewUnifier(NewLedgerReader(repo), NewReceivableReader(repo), NewPayableReader(repo))
}

// UnifyMovements runs every reader concurrently and returns their events
// sorted by resolved timestamp. The first reader failure cancels the others
// and is returned; no partial result is produced.
func (u *Unifier) UnifyMovements(ctx context.Context, p Params) ([]Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	results := make([][]Event, len(u.readers))
	g, gctx := errgroup.WithContext(ctx)
	for i, reader := range u.readers {
		g.Go(func() error {
			events, err := reader.Read(gctx, p)
			if err != nil {
				return sourceError(reader.Source(), err)
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, events := range results {
		total += len(events)
	}
	merged := make([]Event, 0, total)
	for _, events := range results {
		merged = append(merged, events...)
	}
	SortEvents(merged)
	return merged, nil
}

// SortEvents orders events by resolved timestamp, then source kind, source id
// and installment id, so the result does not depend on reader completion order.
func SortEvents(events []Event) {
	slices.SortStableFunc(events, compareEvents)
}

func compareEvents(a, b Event) int {
	if c := a.ResolvedTimestamp.Compare(b.ResolvedTimestamp); c != 0 {
		return c
	}
	if c := a.SourceKind.rank() - b.SourceKind.rank(); c != 0 {
		return c
	}
	if c := bytes.Compare(a.SourceID[:], b.SourceID[:]); c != 0 {
		return c
	}
	switch {
	case a.InstallmentID == nil && b.InstallmentID == nil:
		return 0
	case a.InstallmentID == nil:
		return -1
	case b.InstallmentID == nil:
		return 1
	}
	return bytes.Compare(a.InstallmentID[:], b.InstallmentID[:])
}
