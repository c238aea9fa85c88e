package domain

import (
	"encoding/json"
	"strings"
)

// User is a member of an organization. Fields the client does not model are kept in
// Profile so a cached user round-trips through local storage without loss.
type User struct {
	ID             ID     `json:"id"`
	OrganizationID ID     `json:"organizationId,omitempty"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role,omitempty"`
	Department     ID     `json:"department,omitempty"`
	EmailVerified  bool   `json:"emailVerified,omitempty"`

	Profile map[string]any `json:"-"`
}

// RecordID implements cache.Identified
func (u User) RecordID() ID { return u.ID }

// DisplayName returns the name, falling back to the email address
func (u User) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}

type userFields User

var userKnownKeys = []string{"id", "organizationId", "email", "name", "role", "department", "emailVerified"}

// UnmarshalJSON decodes the modelled fields and keeps everything else in Profile.
func (u *User) UnmarshalJSON(data []byte) error {
	var f userFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := splitExtra(data, userKnownKeys)
	if err != nil {
		return err
	}
	*u = User(f)
	u.Profile = extra
	return nil
}

// MarshalJSON merges Profile back into the object. Modelled fields win on conflict.
func (u User) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(userFields(u))
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, u.Profile)
}

// UserInput is the create/update payload for a user. Nil fields are omitted.
type UserInput struct {
	Email      *string `json:"email,omitempty"`
	Name       *string `json:"name,omitempty"`
	Role       *string `json:"role,omitempty"`
	Department *ID     `json:"department,omitempty"`
	Password   *string `json:"password,omitempty"`
}

// Department groups users inside an organization. Unmodelled server fields are kept in Extra.
type Department struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    ID     `json:"parent_id,omitempty"`
	ManagerID   ID     `json:"manager_id,omitempty"`

	Extra map[string]any `json:"-"`
}

// RecordID implements cache.Identified
func (d Department) RecordID() ID { return d.ID }

type departmentFields Department

var departmentKnownKeys = []string{"id", "name", "description", "parent_id", "manager_id"}

func (d *Department) UnmarshalJSON(data []byte) error {
	var f departmentFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := splitExtra(data, departmentKnownKeys)
	if err != nil {
		return err
	}
	*d = Department(f)
	d.Extra = extra
	return nil
}

func (d Department) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(departmentFields(d))
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, d.Extra)
}

// DepartmentInput is the create/update payload for a department
type DepartmentInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	ParentID    *ID     `json:"parent_id,omitempty"`
	ManagerID   *ID     `json:"manager_id,omitempty"`
}

// Team is the newer grouping endpoint; older servers only expose departments.
type Team struct {
	ID           ID     `json:"id"`
	Name         string `json:"name"`
	DepartmentID ID     `json:"department_id,omitempty"`
}

// RecordID implements cache.Identified
func (t Team) RecordID() ID { return t.ID }

// TeamFromDepartment adapts a department for the teams fallback.
func TeamFromDepartment(d Department) Team {
	return Team{ID: d.ID, Name: d.Name, DepartmentID: d.ID}
}

// Notification is an in-app message addressed to one user
type Notification struct {
	ID        ID     `json:"id"`
	UserID    ID     `json:"user_id,omitempty"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
	Link      string `json:"link,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at,omitempty"`

	Extra map[string]any `json:"-"`
}

// RecordID implements cache.Identified
func (n Notification) RecordID() ID { return n.ID }

type notificationFields Notification

var notificationKnownKeys = []string{"id", "user_id", "type", "title", "message", "link", "read", "created_at"}

func (n *Notification) UnmarshalJSON(data []byte) error {
	var f notificationFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := splitExtra(data, notificationKnownKeys)
	if err != nil {
		return err
	}
	*n = Notification(f)
	n.Extra = extra
	return nil
}

func (n Notification) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(notificationFields(n))
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, n.Extra)
}

// Company is the organization's branding. The server sends logo_url; local storage keeps logoUrl.
type Company struct {
	Name    string `json:"name,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
}

// StoredCompany is the persisted shape of Company
type StoredCompany struct {
	Name    string `json:"name,omitempty"`
	LogoURL string `json:"logoUrl,omitempty"`
}
