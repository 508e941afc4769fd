package momenttest

import "time"

type picture struct {
	data        []byte
	contentType string
}

type kycRecord struct {
	ID            int     `json:"id"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
	FailureReason *string `json:"failure_reason"`
}

type backendState struct {
	user           map[string]any
	profile        map[string]any
	preferences    map[string]any
	profilePicture *picture
	sessionPicture *picture
	kyc            *kycRecord
	notifications  []map[string]any
	prompts        []map[string]any
	// decisions holds submitted review decisions by match id token.
	decisions map[string]bool
	missing   []string
}

func newBackendState() *backendState {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339)
	return &backendState{
		user: map[string]any{
			"id":         1,
			"email":      "ada@example.com",
			"phone":      "+15550100",
			"is_active":  true,
			"is_admin":   false,
			"created_at": created,
		},
		profile: map[string]any{
			"first_name": "Ada",
			"last_name":  "Lovelace",
			"bio":        "Engines",
			"age":        36,
		},
		preferences: map[string]any{
			"age_min":      30,
			"age_max":      45,
			"max_distance": 10,
		},
		notifications: []map[string]any{
			{"id": 1, "type": "match", "title": "New match", "message": "You matched with Charles", "is_read": false, "created_at": created},
			{"id": 2, "type": "system", "title": "Welcome", "message": "Welcome to Moment", "is_read": true, "created_at": created},
		},
		prompts: []map[string]any{
			{
				"match_id_token": "match-1",
				"user":           map[string]any{"id": 2, "first_name": "Charles", "age": 40, "bio": "Difference engines"},
				"matched_at":     created,
			},
		},
		decisions: make(map[string]bool),
	}
}

func (b *backendState) userRead() map[string]any {
	out := make(map[string]any, len(b.user)+2)
	for k, v := range b.user {
		out[k] = v
	}
	profile := make(map[string]any, len(b.profile)+1)
	for k, v := range b.profile {
		profile[k] = v
	}
	if b.profilePicture != nil {
		profile["profile_picture_url"] = "/api/v1/user/me/profile-picture/"
	}
	out["profile"] = profile
	out["preferences"] = b.preferences
	return out
}
