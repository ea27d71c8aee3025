package accredit_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/types"
)

func answerQ(h *harness, userID, question string, correct bool) *accredit.AnswerResult {
	h.t.Helper()
	res, err := h.eng.RecordAnswer(h.ctx, accredit.AnswerInput{
		UserID:    userID,
		Question:  question,
		Category:  "cardiology",
		IsCorrect: correct,
	})
	if err != nil {
		h.t.Fatalf("RecordAnswer(%s): %v", question, err)
	}
	return res
}

func TestRecordAnswerValidation(t *testing.T) {
	h := newHarness(t)

	for _, in := range []accredit.AnswerInput{
		{Question: "q"},
		{UserID: "u1", Question: "   "},
	} {
		_, err := h.eng.RecordAnswer(h.ctx, in)
		if !errors.Is(err, accredit.ErrInvalidInput) {
			t.Errorf("RecordAnswer(%+v) = %v, want ErrInvalidInput", in, err)
		}
	}
}

func TestRecordAnswerNoActiveYear(t *testing.T) {
	h := newHarness(t)
	h.seed("u1", withCredits(1))
	h.now = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	res := answerQ(h, "u1", "q1", true)
	if res.Status != accredit.AnswerNoActiveYear {
		t.Fatalf("status = %s, want no_active_year", res.Status)
	}

	a := h.account("u1")
	if a.Stats.TotalAnswered != 0 || a.Version != 1 {
		t.Errorf("account mutated: %+v", a.Stats)
	}
}

func TestRecordAnswerRequiresAccount(t *testing.T) {
	h := newHarness(t)

	_, err := h.eng.RecordAnswer(h.ctx, accredit.AnswerInput{UserID: "ghost", Question: "q1", IsCorrect: true})
	if !errors.Is(err, accredit.ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestRecordAnswerTierGate(t *testing.T) {
	h := newHarness(t)
	h.seed("free", nil)
	h.seed("board", func(a *entitlement.Account) {
		end := base.AddDate(0, 1, 0)
		a.BoardReview.Active = true
		a.BoardReview.SubscriptionID = "sub_br"
		a.BoardReview.EndDate = &end
	})
	h.seed("annual", withAnnual(base.AddDate(1, 0, 0)))

	tests := []struct {
		user string
		want accredit.AnswerStatus
	}{
		{"free", accredit.AnswerTierIneligible},
		{"board", accredit.AnswerTierIneligible},
		{"annual", accredit.AnswerNoChange},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			res := answerQ(h, tt.user, "q1", true)
			if res.Status != tt.want {
				t.Errorf("status = %s, want %s", res.Status, tt.want)
			}
		})
	}

	if got := h.account("free").Stats.TotalAnswered; got != 0 {
		t.Errorf("ineligible answer was counted: %d", got)
	}
}

func TestRecordAnswerTransitions(t *testing.T) {
	h := newHarness(t)
	h.seed("u1", withCredits(1))

	steps := []struct {
		correct  bool
		status   accredit.AnswerStatus
		answered int
		right    int
	}{
		{false, accredit.AnswerAccuracyLow, 1, 0},
		{false, accredit.AnswerStillIncorrect, 1, 0},
		{true, accredit.AnswerNoChange, 1, 1},
		{true, accredit.AnswerAlreadyCorrect, 1, 1},
		{false, accredit.AnswerAlreadyCorrect, 1, 1},
	}
	for i, st := range steps {
		res := answerQ(h, "u1", "What is the normal QT interval?", st.correct)
		if res.Status != st.status {
			t.Errorf("step %d: status = %s, want %s", i, res.Status, st.status)
		}
		if res.TotalAnsweredInYear != st.answered || res.TotalCorrectInYear != st.right {
			t.Errorf("step %d: counts = %d/%d, want %d/%d",
				i, res.TotalCorrectInYear, res.TotalAnsweredInYear, st.right, st.answered)
		}
		if !res.CreditedDelta.IsZero() {
			t.Errorf("step %d: delta = %s, want 0", i, res.CreditedDelta)
		}
		if res.ActiveYearID != "2025-2026" {
			t.Errorf("step %d: year = %q", i, res.ActiveYearID)
		}
	}

	a := h.account("u1")
	if a.Stats.TotalAnswered != 1 || a.Stats.TotalCorrect != 1 {
		t.Errorf("lifetime stats = %+v", a.Stats)
	}
}

func TestRecordAnswerWhitespaceInsensitive(t *testing.T) {
	h := newHarness(t)
	h.seed("u1", withCredits(1))

	answerQ(h, "u1", "Which drug  reverses\nheparin?", true)
	res := answerQ(h, "u1", "  Which drug reverses heparin? ", true)
	if res.Status != accredit.AnswerAlreadyCorrect {
		t.Fatalf("status = %s, want already_correct", res.Status)
	}
}

func TestRecordAnswerNinetySixCorrect(t *testing.T) {
	rec := newRecorder()
	h := newHarness(t, accredit.WithPlugin(rec))
	h.seed("u1", withCredits(1))

	var sum types.Credits
	var last *accredit.AnswerResult
	for i := 0; i < 96; i++ {
		last = answerQ(h, "u1", fmt.Sprintf("question %d", i), true)
		sum = sum.Add(last.CreditedDelta)
	}

	want := types.Quarters(31)
	if last.YearTotal != want {
		t.Errorf("year total = %s, want 7.75", last.YearTotal)
	}
	if sum != want {
		t.Errorf("sum of deltas = %s, want 7.75", sum)
	}
	if got := h.account("u1").Stats.CreditsEarned; got != want {
		t.Errorf("lifetime earned = %s, want 7.75", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.answers) != 96 {
		t.Errorf("OnAnswerRecorded calls = %d, want 96", len(rec.answers))
	}
}

func TestRecordAnswerCap(t *testing.T) {
	rec := newRecorder()
	h := newHarness(t, accredit.WithPlugin(rec))
	h.seed("u1", withAnnual(base.AddDate(1, 0, 0)))

	var last *accredit.AnswerResult
	for i := 0; i < 320; i++ {
		last = answerQ(h, "u1", fmt.Sprintf("q%d", i), true)
		if last.YearTotal > types.Whole(24) || last.YearTotal.IsNegative() {
			t.Fatalf("year total out of range: %s", last.YearTotal)
		}
	}

	if last.YearTotal != types.Whole(24) {
		t.Errorf("year total = %s, want 24", last.YearTotal)
	}
	if last.Status != accredit.AnswerLimitReached {
		t.Errorf("status = %s, want limit_reached", last.Status)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.capped != 1 {
		t.Errorf("OnAccrualCapped calls = %d, want 1", rec.capped)
	}
}

func TestRecordAnswerNoClawback(t *testing.T) {
	h := newHarness(t)
	h.seed("u1", withCredits(1))

	for i := 0; i < 20; i++ {
		answerQ(h, "u1", fmt.Sprintf("right %d", i), true)
	}

	prev := answerQ(h, "u1", "right 0", true).YearTotal
	sawLow := false
	for i := 0; i < 20; i++ {
		res := answerQ(h, "u1", fmt.Sprintf("wrong %d", i), false)
		if res.YearTotal < prev {
			t.Fatalf("year total dropped from %s to %s", prev, res.YearTotal)
		}
		if res.Status == accredit.AnswerAccuracyLow {
			sawLow = true
			if res.YearTotal != prev || !res.CreditedDelta.IsZero() {
				t.Errorf("accuracy_low changed credit: %s -> %s", prev, res.YearTotal)
			}
		}
		prev = res.YearTotal
	}
	if !sawLow {
		t.Error("accuracy never dropped below the threshold")
	}
}

func TestRecordAnswerConcurrent(t *testing.T) {
	h := newHarness(t, accredit.WithTxRetry(200, 0))
	h.seed("u1", withCredits(1))

	const workers, each = 8, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*each)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_, err := h.eng.RecordAnswer(h.ctx, accredit.AnswerInput{
					UserID:    "u1",
					Question:  fmt.Sprintf("w%d-q%d", w, i),
					IsCorrect: true,
				})
				if err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("RecordAnswer: %v", err)
	}
	a := h.account("u1")
	if a.Stats.TotalAnswered != workers*each {
		t.Errorf("TotalAnswered = %d, want %d", a.Stats.TotalAnswered, workers*each)
	}
}

func TestRecordAnswerConcurrentSameQuestion(t *testing.T) {
	h := newHarness(t, accredit.WithTxRetry(64, 0))
	h.seed("u1", withCredits(1))

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.eng.RecordAnswer(h.ctx, accredit.AnswerInput{
				UserID:    "u1",
				Question:  "Which lead shows an inferior STEMI?",
				IsCorrect: true,
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("RecordAnswer: %v", err)
	}

	a := h.account("u1")
	if a.Stats.TotalAnswered != 1 || a.Stats.TotalCorrect != 1 {
		t.Errorf("lifetime stats = %+v, want one answered and correct", a.Stats)
	}

	ys, err := h.store.GetYearStats(h.ctx, "u1", "2025-2026")
	if err != nil {
		t.Fatal(err)
	}
	if ys.TotalAnswered != 1 || ys.TotalCorrect != 1 {
		t.Errorf("year stats = %d/%d, want 1/1", ys.TotalCorrect, ys.TotalAnswered)
	}
}
