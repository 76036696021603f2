package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		chatSessionsCreated,
		chatMessagesSent,
		chatSendFailures,
		chatDuplicateSessions,
	)
}

var (
	chatSessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_sessions_created_total",
			Help: "Chat sessions created, by counterpart type.",
		},
		[]string{"type"}, // guest, user
	)

	chatMessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Messages appended to chat sessions, by sender kind.",
		},
		[]string{"sender"}, // guest, user, admin
	)

	chatSendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_send_failures_total",
			Help: "Message sends that failed after validation.",
		},
		[]string{"stage"}, // message, session
	)

	chatDuplicateSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_duplicate_sessions_total",
			Help: "Lookups that found more than one session for the same counterpart.",
		},
	)
)

func IncSessionCreated(kind string) {
	chatSessionsCreated.WithLabelValues(norm(kind)).Inc()
}

func IncMessageSent(senderKind string) {
	chatMessagesSent.WithLabelValues(norm(senderKind)).Inc()
}

func IncSendFailure(stage string) {
	chatSendFailures.WithLabelValues(norm(stage)).Inc()
}

func IncDuplicateSession() {
	chatDuplicateSessions.Inc()
}
