package users

// UserRead is the account as returned by api/v1/user/me/.
type UserRead struct {
	ID          int              `json:"id"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone"`
	IsActive    bool             `json:"is_active"`
	IsAdmin     bool             `json:"is_admin"`
	CreatedAt   string           `json:"created_at"`
	Profile     *UserProfile     `json:"profile"`
	Preferences *UserPreferences `json:"preferences"`
}

type UserProfile struct {
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	Bio               *string `json:"bio"`
	Age               *int    `json:"age"`
	ProfilePictureURL *string `json:"profile_picture_url"` // Relative to the API root
}

// UserPreferences are the match filters.
type UserPreferences struct {
	AgeMin      *int `json:"age_min"`
	AgeMax      *int `json:"age_max"`
	MaxDistance *int `json:"max_distance"` // Kilometres
}

// UserProfileUpdate is a partial update: nil fields are left unchanged.
type UserProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Age       *int    `json:"age,omitempty"`
}

type UserPreferencesUpdate struct {
	AgeMin      *int `json:"age_min,omitempty"`
	AgeMax      *int `json:"age_max,omitempty"`
	MaxDistance *int `json:"max_distance,omitempty"`
}

type ChangeEmailRequest struct {
	Email string `json:"email"`
}

// SessionPictureResponse names the stored picture shown to matches during a session.
type SessionPictureResponse struct {
	Filename string `json:"filename"`
}

// Picture is a downloaded image.
type Picture struct {
	Data        []byte
	ContentType string
}
