package model

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the stored record. Password is never serialized.
type User struct {
	ID       int    `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"-" yaml:"password"`
	Role     Role   `json:"role" yaml:"role"`
}

func (u User) EntityID() int { return u.ID }

type Study struct {
	ID                int    `json:"id" yaml:"id"`
	UserID            int    `json:"userId" yaml:"userId"`
	Institution       string `json:"institution" yaml:"institution"`
	Title             string `json:"title" yaml:"title"`
	Degree            string `json:"degree" yaml:"degree"`
	FieldOfStudy      string `json:"fieldOfStudy" yaml:"fieldOfStudy"`
	StartYear         string `json:"startYear" yaml:"startYear"`
	EndYear           string `json:"endYear,omitempty" yaml:"endYear"`
	Description       string `json:"description" yaml:"description"`
	CurrentlyStudying bool   `json:"currentlyStudying" yaml:"currentlyStudying"`
}

func (s Study) EntityID() int { return s.ID }

type Address struct {
	ID      int    `json:"id" yaml:"id"`
	UserID  int    `json:"userId" yaml:"userId"`
	Street  string `json:"street" yaml:"street"`
	City    string `json:"city" yaml:"city"`
	State   string `json:"state" yaml:"state"`
	ZipCode string `json:"zipCode" yaml:"zipCode"`
	Country string `json:"country" yaml:"country"`
}

func (a Address) EntityID() int { return a.ID }

// Profile is a user without credentials, joined with owned records.
type Profile struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Studies   []Study   `json:"studies"`
	Addresses []Address `json:"addresses"`
}

func (p Profile) EntityID() int { return p.ID }

func NewProfile(u User) Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Studies:   []Study{},
		Addresses: []Address{},
	}
}

// UserInput is the writable shape of a user. An empty Password on update
// keeps the stored one.
type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
	Role     Role   `json:"role"`
}

type StudyInput struct {
	UserID            int    `json:"userId"`
	Institution       string `json:"institution"`
	Title             string `json:"title"`
	Degree            string `json:"degree"`
	FieldOfStudy      string `json:"fieldOfStudy"`
	StartYear         string `json:"startYear"`
	EndYear           string `json:"endYear,omitempty"`
	Description       string `json:"description"`
	CurrentlyStudying bool   `json:"currentlyStudying"`
}

func (in StudyInput) WithOwner(userID int) StudyInput {
	in.UserID = userID
	return in
}

type AddressInput struct {
	UserID  int    `json:"userId"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

func (in AddressInput) WithOwner(userID int) AddressInput {
	in.UserID = userID
	return in
}

// ProfilePatch carries partial profile updates; nil fields are left alone.
type ProfilePatch struct {
	Name      *string    `json:"name,omitempty"`
	Email     *string    `json:"email,omitempty"`
	Role      *Role      `json:"role,omitempty"`
	Studies   *[]Study   `json:"studies,omitempty"`
	Addresses *[]Address `json:"addresses,omitempty"`
}

func (p Profile) Apply(patch ProfilePatch) Profile {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Role != nil {
		p.Role = *patch.Role
	}
	if patch.Studies != nil {
		p.Studies = append([]Study{}, (*patch.Studies)...)
	}
	if patch.Addresses != nil {
		p.Addresses = append([]Address{}, (*patch.Addresses)...)
	}
	return p
}
