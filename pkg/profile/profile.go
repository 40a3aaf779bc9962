package profile

// DateLayout is the format of Profile.LoginDate.
const DateLayout = "2006-01-02"

// Profile is the content of user_details.json.
type Profile struct {
	Username  string `json:"username"`
	LoginDate string `json:"login_time"`
	Streak    int    `json:"streak"`
}

// StreakChange says what the latest login did to the streak.
type StreakChange int

const (
	StreakStarted StreakChange = iota
	StreakKept
	StreakIncreased
	StreakReset
)

func (c StreakChange) String() string {
	switch c {
	case StreakStarted:
		return "started"
	case StreakKept:
		return "kept"
	case StreakIncreased:
		return "increased"
	case StreakReset:
		return "reset"
	}
	return "unknown"
}
