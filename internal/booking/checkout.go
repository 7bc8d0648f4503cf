package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/example/court-scheduler/internal/browser"
)

// checkout walks the reservation sequence for one slot: select,
// register, proceed, checkout, final checkout. Every control is
// re-resolved from the live DOM immediately before its click, and the
// remembered slot index is verified against the slot's time text first
// since any earlier click may have re-rendered the list. A missing
// control aborts the slot attempt; nothing is unwound.
func (e *Engine) checkout(ctx context.Context, slot Slot) error {
	log := e.log.With().Str("time", slot.TimeText).Str("court", slot.Court).Logger()
	log.Info().Msg("starting checkout sequence")

	if err := e.settle(ctx, time.Second); err != nil {
		return err
	}
	cards, err := e.page.All(e.cfg.Selectors.TimeSlotCard)
	if err != nil {
		return fmt.Errorf("re-list slot cards: %w", err)
	}
	buttons, err := e.page.All(e.cfg.Selectors.SelectButton)
	if err != nil {
		return fmt.Errorf("re-list select controls: %w", err)
	}

	index := slot.Index
	if index >= len(cards) || index >= len(buttons) {
		return fmt.Errorf("slot index %d beyond %d rendered cards: %w", index, len(cards), ErrControlMissing)
	}

	// the list may have shifted since enumeration, the time text is the
	// stable key
	if cur := slotTimeAt(cards[index], e.cfg.Selectors.InstanceTime); cur != "" && cur != slot.TimeText {
		log.Warn().Str("expected", slot.TimeText).Str("found", cur).Msg("slot moved since enumeration, re-locating by time text")
		index = -1
		for i, c := range cards {
			if slotTimeAt(c, e.cfg.Selectors.InstanceTime) == slot.TimeText {
				index = i
				break
			}
		}
		if index < 0 || index >= len(buttons) {
			return fmt.Errorf("slot %q no longer present: %w", slot.TimeText, ErrControlMissing)
		}
	}

	if err := buttons[index].Click(); err != nil {
		return fmt.Errorf("select slot: %w", err)
	}
	if err := e.settle(ctx, 2*time.Second); err != nil {
		return err
	}

	steps := []struct {
		name     string
		selector string
		settle   time.Duration
	}{
		{"register", e.cfg.Selectors.RegisterButton, 2 * time.Second},
		{"proceed-to-checkout", e.cfg.Selectors.ProceedToCheckout, 2 * time.Second},
		{"checkout", e.cfg.Selectors.CheckoutButton, 2 * time.Second},
		{"final-checkout", e.cfg.Selectors.FinalCheckout, 3 * time.Second},
	}
	for _, step := range steps {
		el, err := e.page.Find(step.selector, e.cfg.Timeout())
		if err != nil {
			return fmt.Errorf("%s control %s: %w", step.name, step.selector, ErrControlMissing)
		}
		if err := el.Click(); err != nil {
			return fmt.Errorf("click %s control: %w", step.name, err)
		}
		if err := e.settle(ctx, step.settle); err != nil {
			return err
		}
		log.Debug().Str("step", step.name).Msg("checkout step completed")
	}

	log.Info().Msg("checkout sequence completed")
	return nil
}

func slotTimeAt(card browser.Element, selector string) string {
	el, err := card.Query(selector)
	if err != nil {
		return ""
	}
	t, err := el.Text()
	if err != nil {
		return ""
	}
	return t
}
