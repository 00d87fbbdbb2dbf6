package model

import "time"

// TrainerProfile holds the public profile of a user with the trainer
// role.  A user has at most one profile.  Classes reference the
// trainer's UserID, not the profile ID.
type TrainerProfile struct {
	ID             uint64    `json:"id"`
	UserID         uint64    `json:"user_id"`
	Bio            *string   `json:"bio"`
	Specialties    *string   `json:"specialties"`
	Certifications *string   `json:"certifications"`
	CreatedAt      time.Time `json:"created_at"`
}
