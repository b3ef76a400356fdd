package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BookingsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Number of successful session bookings",
		},
	)

	CancellationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cancellations_total",
			Help: "Number of successful booking cancellations",
		},
	)

	WaitlistJoinsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_joins_total",
			Help: "Number of waitlist joins",
		},
	)

	PromotionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_promotions_total",
			Help: "Number of waitlist offers extended",
		},
	)

	AcceptancesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_acceptances_total",
			Help: "Number of waitlist offers accepted",
		},
	)

	ExpiriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waitlist_expiries_total",
			Help: "Number of waitlist offers that expired unused",
		},
	)

	PurchasesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_purchases_total",
			Help: "Number of confirmed credit purchases",
		},
	)
)

// Register installs all collectors on the default registry.  Call
// once at startup.
func Register() {
	prometheus.MustRegister(
		BookingsTotal,
		CancellationsTotal,
		WaitlistJoinsTotal,
		PromotionsTotal,
		AcceptancesTotal,
		ExpiriesTotal,
		PurchasesTotal,
	)
}
