package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// questionsIngested counts questions accepted into the store.
	questionsIngested = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_questions_ingested_total",
		Help: "Total number of questions accepted and scheduled.",
	})

	// questionsRejected counts silently ignored and rate-limited messages.
	questionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_questions_rejected_total",
		Help: "Total number of messages rejected at ingestion.",
	}, []string{"reason"})

	// answersSent counts successfully delivered automated answers.
	answersSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_answers_sent_total",
		Help: "Total number of automated answers delivered.",
	})

	// answersSuppressed counts delayed tasks that ended without a send.
	answersSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_answers_suppressed_total",
		Help: "Total number of delayed tasks that terminated without sending.",
	}, []string{"reason"})

	// feedbackRecorded counts ratings by value.
	feedbackRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_feedback_recorded_total",
		Help: "Total number of answer ratings recorded.",
	}, []string{"rating"})

	// questionsSwept counts rows removed by the retention sweeper.
	questionsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_questions_swept_total",
		Help: "Total number of question rows removed by retention sweeps.",
	})
)

func init() {
	prometheus.MustRegister(
		questionsIngested,
		questionsRejected,
		answersSent,
		answersSuppressed,
		feedbackRecorded,
		questionsSwept,
	)
}
