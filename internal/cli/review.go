// Package cli holds interactive terminal sessions built on top of the
// gateway.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"

	"github.com/offlingo/offlingo/internal/gateway"
	"github.com/offlingo/offlingo/internal/store"
)

var errEnd = errors.New("end")

// ReviewSession runs an interactive flashcard review loop. Cards are shown
// one at a time: the learner recalls the definition, reveals it, and says
// whether they knew it. Every answer is recorded through the gateway, so
// review counts reach the server like any other write and queue up while
// offline.
type ReviewSession struct {
	gateway      *gateway.Gateway
	cards        []store.Flashcard
	stdinReader  *bufio.Reader
	stdoutWriter io.Writer
	bold         *color.Color
	italic       *color.Color
}

// NewReviewSession loads the cards matching filter from the local cache.
func NewReviewSession(ctx context.Context, gw *gateway.Gateway, filter store.FlashcardFilter) (*ReviewSession, error) {
	cards, err := gw.QueryFlashcards(ctx, filter, gateway.ReadOptions{})
	if err != nil {
		return nil, fmt.Errorf("gateway.QueryFlashcards() > %w", err)
	}
	return &ReviewSession{
		gateway:      gw,
		cards:        cards,
		stdinReader:  bufio.NewReader(os.Stdin),
		stdoutWriter: os.Stdout,
		bold:         color.New(color.Bold),
		italic:       color.New(color.Italic),
	}, nil
}

// ShuffleCards shuffles the review order.
func (r *ReviewSession) ShuffleCards() {
	rand.Shuffle(len(r.cards), func(i, j int) {
		r.cards[i], r.cards[j] = r.cards[j], r.cards[i]
	})
}

// CardCount returns the number of cards left in the session.
func (r *ReviewSession) CardCount() int {
	return len(r.cards)
}

// Run drives Session until the deck is exhausted or the learner interrupts.
func (r *ReviewSession) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(
		ctx,
		os.Interrupt,
	)
	defer cancel()

	errCh := make(chan error)
	go func() {
		defer close(errCh)

	LOOP:
		for {
			select {
			case <-ctx.Done():
				break LOOP
			default:
			}

			if err := r.Session(ctx); err != nil {
				if errors.Is(err, errEnd) {
					break
				}
				errCh <- err
				break
			}
		}
	}()
	select {
	case <-ctx.Done():
		fmt.Fprintln(r.stdoutWriter, "Received interrupt signal, exiting...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error: %w", err)
		}
	}
	return nil
}

// Session shows one card, reveals its definition and records the answer.
func (r *ReviewSession) Session(ctx context.Context) error {
	if len(r.cards) == 0 {
		fmt.Fprintln(r.stdoutWriter, "No more cards to review!")
		return errEnd
	}
	card := r.cards[0]

	fmt.Fprintf(r.stdoutWriter, "What does %s mean? (press Enter to reveal, q to quit)\n",
		r.bold.Sprintf("%s", card.WordOrPhrase))
	input, err := r.stdinReader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errEnd
		}
		return fmt.Errorf("error reading input: %w", err)
	}
	if strings.TrimSpace(input) == "q" {
		return errEnd
	}

	fmt.Fprintf(r.stdoutWriter, `%s means "%s"`,
		r.bold.Sprintf("%s", card.WordOrPhrase),
		r.italic.Sprintf("%s", card.Definition),
	)
	fmt.Fprintln(r.stdoutWriter)
	if card.Etymology != "" {
		fmt.Fprintf(r.stdoutWriter, "Etymology: %s\n", card.Etymology)
	}
	if len(card.RelatedWords) > 0 {
		fmt.Fprintf(r.stdoutWriter, "Related words: %s\n", strings.Join(card.RelatedWords, ", "))
	}

	fmt.Fprint(r.stdoutWriter, "Did you know it? [y/n]: ")
	answer, err := r.stdinReader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errEnd
		}
		return fmt.Errorf("error reading input: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(answer), "y") {
		fmt.Fprint(r.stdoutWriter, "✅ ")
		color.Green("Nice, you knew %s", r.bold.Sprintf("%s", card.WordOrPhrase))
	} else {
		fmt.Fprint(r.stdoutWriter, "❌ ")
		color.Red(`Keep practicing. %s means "%s"`,
			r.bold.Sprintf("%s", card.WordOrPhrase),
			r.italic.Sprintf("%s", card.Definition),
		)
	}
	fmt.Fprintln(r.stdoutWriter)

	if _, err := r.gateway.ReviewFlashcard(ctx, card.ID); err != nil {
		return fmt.Errorf("gateway.ReviewFlashcard(%d) > %w", card.ID, err)
	}

	r.cards = r.cards[1:]
	return nil
}
