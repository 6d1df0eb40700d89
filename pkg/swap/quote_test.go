package swap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dex-swap/pkg/types"
)

func TestQuoteBookExactInput(t *testing.T) {
	resolver := &fakeResolver{counter: units("95", 18)}
	book := NewQuoteBook(resolver, tokenA, tokenB)

	book.EditInput("100")
	state, err := book.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "100", state.InputAmount)
	require.Equal(t, "95", state.OutputAmount)
	require.Equal(t, "100", state.Authoritative())
}

func TestQuoteBookExactOutput(t *testing.T) {
	resolver := &fakeResolver{counter: units("100.5", 18)}
	book := NewQuoteBook(resolver, tokenA, tokenB)

	book.EditInput("7")
	book.EditOutput("95")
	state := book.State()
	require.Equal(t, types.ExactOutput, state.Direction)
	require.Empty(t, state.InputAmount)

	state, err := book.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "100.5", state.InputAmount)
	require.Equal(t, "95", state.OutputAmount)
}

func TestQuoteBookEmptyAmountSkipsQuote(t *testing.T) {
	resolver := &fakeResolver{counter: units("1", 18)}
	book := NewQuoteBook(resolver, tokenA, tokenB)

	_, err := book.Refresh(context.Background())
	require.NoError(t, err)

	book.EditInput("0")
	_, err = book.Refresh(context.Background())
	require.NoError(t, err)
	require.Zero(t, resolver.calls)
}

func TestQuoteBookDiscardsStaleResult(t *testing.T) {
	resolver := &fakeResolver{counter: units("95", 18), block: make(chan struct{}), started: make(chan struct{}, 1)}
	book := NewQuoteBook(resolver, tokenA, tokenB)
	book.EditInput("100")

	errCh := make(chan error, 1)
	go func() {
		_, err := book.Refresh(context.Background())
		errCh <- err
	}()

	<-resolver.started
	book.EditInput("200")
	close(resolver.block)

	require.ErrorIs(t, <-errCh, ErrStaleQuote)
	state := book.State()
	require.Equal(t, "200", state.InputAmount)
	require.Empty(t, state.OutputAmount)
}

func TestQuoteBookDirectionFlipIsStale(t *testing.T) {
	resolver := &fakeResolver{counter: units("95", 18), block: make(chan struct{}), started: make(chan struct{}, 1)}
	book := NewQuoteBook(resolver, tokenA, tokenB)
	book.EditInput("100")

	errCh := make(chan error, 1)
	go func() {
		_, err := book.Refresh(context.Background())
		errCh <- err
	}()

	<-resolver.started
	book.EditOutput("100")
	close(resolver.block)

	require.ErrorIs(t, <-errCh, ErrStaleQuote)
	require.Empty(t, book.State().InputAmount)
}

func TestQuoteBookResolverError(t *testing.T) {
	boom := errors.New("quote failed")
	book := NewQuoteBook(&fakeResolver{err: boom}, tokenA, tokenB)
	book.EditInput("1")

	_, err := book.Refresh(context.Background())
	require.ErrorIs(t, err, boom)
	require.Empty(t, book.State().OutputAmount)
}

func TestQuoteBookSetTokensClearsDerived(t *testing.T) {
	book := NewQuoteBook(&fakeResolver{counter: units("3", 6)}, tokenA, tokenC)
	book.EditInput("1")
	state, err := book.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, "3", state.OutputAmount)

	book.SetTokens(tokenA, tokenB)
	require.Empty(t, book.State().OutputAmount)
	require.Equal(t, "1", book.State().InputAmount)
}

func TestQuoteBookScheduleDebounces(t *testing.T) {
	resolver := &fakeResolver{counter: units("95", 18)}
	book := NewQuoteBook(resolver, tokenA, tokenB)
	defer book.Stop()

	results := make(chan QuoteState, 4)
	done := func(s QuoteState, err error) {
		require.NoError(t, err)
		results <- s
	}

	book.EditInput("1")
	book.Schedule(context.Background(), 50*time.Millisecond, done)
	book.EditInput("100")
	book.Schedule(context.Background(), 50*time.Millisecond, done)

	select {
	case s := <-results:
		require.Equal(t, "100", s.InputAmount)
		require.Equal(t, "95", s.OutputAmount)
	case <-time.After(time.Second):
		t.Fatal("scheduled refresh never ran")
	}

	select {
	case <-results:
		t.Fatal("debounced refresh ran twice")
	case <-time.After(100 * time.Millisecond):
	}

	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	require.Equal(t, 1, resolver.calls)
}
