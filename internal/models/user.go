package models

import "time"

// Role represents a user's privilege level.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// UserStatus is the reliability status of an account.
type UserStatus string

const (
	UserActive UserStatus = "ativo"
	UserLocked UserStatus = "bloqueado"
)

// User represents a registered member.
type User struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Email               string     `json:"email"`
	Phone               string     `json:"phone,omitempty"`
	Password            string     `json:"-"`
	Role                Role       `json:"role"`
	Status              UserStatus `json:"status"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	ConsecutiveAbsences int        `json:"consecutive_absences"`
	LifetimeAbsences    int        `json:"lifetime_absences"`
	LastAccessAt        *time.Time `json:"last_access_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone,omitempty"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}
