package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "teamquiz"

var (
	sessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Game sessions by lifecycle transition.",
	}, []string{"transition"})

	answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_validated_total",
		Help:      "Validated team answers by outcome.",
	}, []string{"correct"})

	doubleResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "double_resolutions_total",
		Help:      "Rejected attempts to resolve an already resolved round.",
	}, []string{"by"})
)

func SessionStarted()   { sessions.WithLabelValues("started").Inc() }
func SessionCompleted() { sessions.WithLabelValues("completed").Inc() }
func SessionAbandoned() { sessions.WithLabelValues("abandoned").Inc() }

func AnswerValidated(correct bool) {
	answers.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func DoubleResolution(by string) {
	doubleResolutions.WithLabelValues(by).Inc()
}
