package messaging

import (
	"context"
	"errors"
)

// MultiSender fans a message out to every configured sender
type MultiSender struct {
	senders []MessageSender
}

// NewMultiSender creates a MultiSender; nil senders are skipped
func NewMultiSender(senders ...MessageSender) *MultiSender {
	m := &MultiSender{}
	for _, s := range senders {
		if s != nil {
			m.senders = append(m.senders, s)
		}
	}
	return m
}

// Len returns the number of wrapped senders
func (m *MultiSender) Len() int {
	return len(m.senders)
}

// SendMatchMessage sends msg through every sender and joins their errors.
// A sender reporting ErrNoSubscriber does not fail delivery while another
// sender succeeded.
func (m *MultiSender) SendMatchMessage(ctx context.Context, msg *MatchMessage) error {
	var errs []error
	delivered := false
	for _, s := range m.senders {
		if err := s.SendMatchMessage(ctx, msg); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}

	if delivered {
		var hard []error
		for _, err := range errs {
			if !errors.Is(err, ErrNoSubscriber) {
				hard = append(hard, err)
			}
		}
		errs = hard
	}
	return errors.Join(errs...)
}

// Close closes every sender and joins their errors
func (m *MultiSender) Close() error {
	var errs []error
	for _, s := range m.senders {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

var _ MessageSender = (*MultiSender)(nil)
