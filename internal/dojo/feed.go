package dojo

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Feed limits.
const (
	MaxRecommendations   = 5
	MaxActivities        = 5
	newMemberLimit       = 3
	overdueLimit         = 5
	lapsedLimit          = 10
	promotionLimit       = 5
	paymentEventLimit    = 5
	cancellationLimit    = 3
	promotionEventLimit  = 3
	newMemberWindowDays  = 7
	lapsedWindowDays     = 30
	paymentWindowDays    = 7
	cancelWindowDays     = 7
	promotionWindowDays  = 14
	daysPerPromotionStep = 30
)

// Activity types.
const (
	ActivityPayment      = "payment"
	ActivityCancellation = "cancellation"
	ActivityPromotion    = "promotion"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a dollar amount with thousands separators, e.g. $1,234.50.
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return amountPrinter.Sprintf("$%.2f", f)
}

// RecommendationInputs collects the rows recommendations are derived from.
type RecommendationInputs struct {
	NewMembers []MemberRef
	Overdue    []OverdueMember
	Lapsed     []MemberRef
	Candidates []PromotionCandidate
	AsOf       time.Time
}

// BuildRecommendations derives the ordered recommendation list: new member
// follow-ups, overdue accounts, lapsed attendance and promotion candidates.
// The list is not truncated; see TopRecommendations.
func BuildRecommendations(in RecommendationInputs) []Recommendation {
	var out []Recommendation
	add := func(rec Recommendation) {
		rec.ID = rec.Action
		out = append(out, rec)
	}

	for _, m := range in.NewMembers {
		add(Recommendation{
			Title:       "Follow up with " + m.Name,
			Description: "about their first visit",
			Avatar:      m.Avatar,
			Action:      "view_member:" + m.ID,
			Priority:    "high",
		})
	}

	if len(in.Overdue) > 0 {
		total := decimal.Zero
		for _, m := range in.Overdue {
			total = total.Add(m.Outstanding)
		}
		add(Recommendation{
			Title:       "Resolve past due accounts.",
			Description: fmt.Sprintf("See %d members who are past due (%s)", len(in.Overdue), FormatAmount(total)),
			Action:      "view_overdue_members",
			Icon:        "fa-dollar",
			Priority:    "medium",
		})
	}

	if len(in.Lapsed) > 0 {
		add(Recommendation{
			Title:       "Set up automation email to follow up",
			Description: fmt.Sprintf("with %d past members who haven't attended recently", len(in.Lapsed)),
			Action:      "setup_email_automation",
			Icon:        "fa-envelope",
			Priority:    "low",
		})
	}

	for _, c := range in.Candidates {
		months := MonthsInBelt(c.BeltSince, in.AsOf)
		if months < float64(c.Belt.PromotionThresholdMonths()) {
			continue
		}
		add(Recommendation{
			Title:       "Consider promoting " + c.Name,
			Description: fmt.Sprintf("from %s belt (%.0f months)", c.Belt, months),
			Avatar:      c.Avatar,
			Action:      "view_promotion:" + c.ID,
			Priority:    "medium",
		})
	}

	return out
}

// TopRecommendations drops completed entries and keeps the first
// MaxRecommendations of the rest.
func TopRecommendations(all []Recommendation, completed map[string]bool) []Recommendation {
	out := make([]Recommendation, 0, MaxRecommendations)
	for _, rec := range all {
		if completed[rec.ID] {
			continue
		}
		out = append(out, rec)
		if len(out) == MaxRecommendations {
			break
		}
	}
	return out
}

// MonthsInBelt counts 30-day periods between since and asOf.
func MonthsInBelt(since, asOf time.Time) float64 {
	days := math.Floor(asOf.Sub(since).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days / daysPerPromotionStep
}

// ActivityInputs collects the rows the activity feed is derived from.
type ActivityInputs struct {
	Payments      []PaymentEvent
	Cancellations []CancellationEvent
	Promotions    []PromotionEvent
}

// BuildActivity merges payments, cancellations and promotions into one feed
// ordered newest first.
func BuildActivity(in ActivityInputs) []Activity {
	out := make([]Activity, 0, len(in.Payments)+len(in.Cancellations)+len(in.Promotions))
	for _, p := range in.Payments {
		out = append(out, Activity{
			Member:      p.ID,
			MemberName:  p.Name,
			Description: fmt.Sprintf("has been charged %s for %s", FormatAmount(p.Amount), strings.ToLower(p.PaymentType)),
			Avatar:      p.Avatar,
			Date:        p.PaymentDate,
			Type:        ActivityPayment,
		})
	}
	for _, c := range in.Cancellations {
		expiry := "soon"
		if c.NextPaymentDue != nil {
			expiry = c.NextPaymentDue.Format("2006-01-02")
		}
		out = append(out, Activity{
			Member:      c.ID,
			MemberName:  c.Name,
			Description: "cancelled their membership and it is expiring " + expiry,
			Avatar:      c.Avatar,
			Date:        c.Modified,
			Type:        ActivityCancellation,
		})
	}
	for _, p := range in.Promotions {
		out = append(out, Activity{
			Member:      p.ID,
			MemberName:  p.Name,
			Description: fmt.Sprintf("was promoted to %s belt", p.ToBelt),
			Avatar:      p.Avatar,
			Date:        p.PromotionDate,
			Type:        ActivityPromotion,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > MaxActivities {
		out = out[:MaxActivities]
	}
	return out
}
