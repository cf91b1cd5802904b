package user

import "time"

type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Password    string `json:"-"`
	DisplayName string `json:"display_name,omitempty"`
}

// Name returns the name shown in chat: the display name when set,
// else the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

type ContactRequest struct {
	ID           int       `json:"id"`
	FromUser     int       `json:"from_user"`
	FromUsername string    `json:"from_username"`
	ToUser       int       `json:"to_user"`
	CreatedAt    time.Time `json:"created_at"`
}

type Group struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	CreatorID int       `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ID          int    `json:"id"`
	Username    string `json:"username"`
}
