package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterSetsLogged         prometheus.Counter
	CounterPersonalRecords    prometheus.Counter
	CounterWorkoutsStarted    prometheus.Counter
	CounterWorkoutsFinished   prometheus.Counter
	CounterAdvisorCalls       prometheus.Counter
	CounterAdvisorFailures    prometheus.Counter
	CounterHandleRequestPanic prometheus.Counter
	CounterRateLimitedLogins  prometheus.Counter

	// gauges
	GaugeRequests   prometheus.Gauge
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
	HistAdvisorCallDuration  prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("backend", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("backend", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterSetsLogged := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sets_logged",
		Help:      "The total number of logged workout sets",
	})
	counterPersonalRecords := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "personal_records",
		Help:      "The total number of detected personal records",
	})
	counterWorkoutsStarted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_started",
		Help:      "The total number of started workout sessions",
	})
	counterWorkoutsFinished := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workouts_finished",
		Help:      "The total number of completed workout sessions",
	})
	counterAdvisorCalls := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "advisor_calls",
		Help:      "The total number of coaching advisor calls",
	})
	counterAdvisorFailures := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "advisor_failures",
		Help:      "The total number of failed or timed out coaching advisor calls",
	})
	counterHandleRequestPanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})
	counterRateLimitedLogins := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_logins",
		Help:      "The total number of rate limited login requests",
	})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "status"})
	histAdvisorCallDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "advisor_call_duration_seconds",
		Help:      "Duration of a single coaching advisor call in seconds",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
	})

	return &Manager{
		CounterRequests:           counterRequests,
		CounterSetsLogged:         counterSetsLogged,
		CounterPersonalRecords:    counterPersonalRecords,
		CounterWorkoutsStarted:    counterWorkoutsStarted,
		CounterWorkoutsFinished:   counterWorkoutsFinished,
		CounterAdvisorCalls:       counterAdvisorCalls,
		CounterAdvisorFailures:    counterAdvisorFailures,
		CounterHandleRequestPanic: counterHandleRequestPanic,
		CounterRateLimitedLogins:  counterRateLimitedLogins,
		GaugeRequests:             gaugeRequests,
		GaugeLifeSignal:           gaugeLifeSignal,
		HistogramRequestDuration:  histogramRequestDuration,
		HistAdvisorCallDuration:   histAdvisorCallDuration,
	}
}
