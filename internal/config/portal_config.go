package config

import "time"

const (
	// Reports
	DefaultReportsLimit = 50
	MaxReportsLimit     = 50

	// Feedback paging
	MaxFeedbackPageSize = 200

	// Sessions
	DefaultSessionTTL = 12 * time.Hour
	SessionKeyPrefix  = "session:"
	UserSessionsKey   = "user_sessions:"

	// Live feed
	LiveFeedChannel    = "violations:live"
	LiveClientBuffer   = 64
	NotifierQueueSize  = 100
	DefaultServicePort = "5000"

	// Review
	DefaultViolationWeight = 10
	RiskThresholdScore     = 250
	RiskThresholdFrequency = 5
	RiskWindow             = 24 * time.Hour
)

// Destinations the gate redirects to, relative to the site root.
const (
	DefaultAdminDestination   = "/admin.html"
	DefaultTeacherDestination = "/profDashboard/professorDashboard.html"
	DefaultStudentDestination = "/studDashboard/studentDashboard.html"
)

// ClientOptionKeys lists the client configuration options in the order
// they are rendered into firebase-config.js, paired with their env names.
var ClientOptionKeys = [][2]string{
	{"apiKey", "FIREBASE_API_KEY"},
	{"authDomain", "FIREBASE_AUTH_DOMAIN"},
	{"projectId", "FIREBASE_PROJECT_ID"},
	{"storageBucket", "FIREBASE_STORAGE_BUCKET"},
	{"messagingSenderId", "FIREBASE_MESSAGING_SENDER_ID"},
	{"appId", "FIREBASE_APP_ID"},
	{"measurementId", "FIREBASE_MEASUREMENT_ID"},
}

// ViolationWeights is the risk weight of each known violation type.
// Unknown types weigh DefaultViolationWeight.
var ViolationWeights = map[string]int{
	"tab_switch":     5,
	"window_blur":    5,
	"copy_paste":     25,
	"face_missing":   50,
	"multiple_faces": 100,
	"voice_detected": 50,
	"phone_detected": 250,
	"screen_share":   250,
}
