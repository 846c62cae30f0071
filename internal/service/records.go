package service

import (
	"context"
	"errors"

	"github.com/EmaRG1/user-manager/internal/mockdb"
	"github.com/EmaRG1/user-manager/internal/model"
)

type Studies struct {
	store   *mockdb.Store
	gate    gate
	latency Latency
}

func (s *Studies) GetByUserID(ctx context.Context, userID int) ([]model.Study, error) {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return nil, err
	}
	return s.store.StudiesByUser(userID), nil
}

func (s *Studies) GetByID(ctx context.Context, id int) (model.Study, error) {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return model.Study{}, err
	}
	st, ok := s.store.StudyByID(id)
	if !ok {
		return model.Study{}, notFound("study", id)
	}
	return st, nil
}

// Create stores the study as given; EndYear may be empty while
// CurrentlyStudying is set.
func (s *Studies) Create(ctx context.Context, in model.StudyInput) (model.Study, error) {
	if err := s.gate.enter(ctx, s.latency.RecordWrite); err != nil {
		return model.Study{}, err
	}
	if in.UserID == 0 {
		return model.Study{}, ErrInvalidInput
	}
	return s.store.InsertStudy(studyFromInput(model.Study{}, in)), nil
}

func (s *Studies) Update(ctx context.Context, id int, in model.StudyInput) (model.Study, error) {
	if err := s.gate.enter(ctx, s.latency.RecordWrite); err != nil {
		return model.Study{}, err
	}
	st, err := s.store.UpdateStudy(id, func(st *model.Study) {
		*st = studyFromInput(*st, in)
	})
	if errors.Is(err, ErrNotFound) {
		return model.Study{}, notFound("study", id)
	}
	return st, err
}

func (s *Studies) Delete(ctx context.Context, id int) error {
	if err := s.gate.enter(ctx, s.latency.RecordWrite); err != nil {
		return err
	}
	if err := s.store.DeleteStudy(id); err != nil {
		return notFound("study", id)
	}
	return nil
}

func studyFromInput(st model.Study, in model.StudyInput) model.Study {
	if in.UserID != 0 {
		st.UserID = in.UserID
	}
	st.Institution = in.Institution
	st.Title = in.Title
	st.Degree = in.Degree
	st.FieldOfStudy = in.FieldOfStudy
	st.StartYear = in.StartYear
	st.EndYear = in.EndYear
	st.Description = in.Description
	st.CurrentlyStudying = in.CurrentlyStudying
	return st
}

type Addresses struct {
	store   *mockdb.Store
	gate    gate
	latency Latency
}

func (s *Addresses) GetByUserID(ctx context.Context, userID int) ([]model.Address, error) {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return nil, err
	}
	return s.store.AddressesByUser(userID), nil
}

func (s *Addresses) GetByID(ctx context.Context, id int) (model.Address, error) {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return model.Address{}, err
	}
	a, ok := s.store.AddressByID(id)
	if !ok {
		return model.Address{}, notFound("address", id)
	}
	return a, nil
}

func (s *Addresses) Create(ctx context.Context, in model.AddressInput) (model.Address, error) {
	if err := s.gate.enter(ctx, s.latency.RecordWrite); err != nil {
		return model.Address{}, err
	}
	if in.UserID == 0 {
		return model.Address{}, ErrInvalidInput
	}
	return s.store.InsertAddress(addressFromInput(model.Address{}, in)), nil
}

func (s *Addresses) Update(ctx context.Context, id int, in model.AddressInput) (model.Address, error) {
	if err := s.gate.enter(ctx, s.latency.RecordWrite); err != nil {
		return model.Address{}, err
	}
	a, err := s.store.UpdateAddress(id, func(a *model.Address) {
		*a = addressFromInput(*a, in)
	})
	if errors.Is(err, ErrNotFound) {
		return model.Address{}, notFound("address", id)
	}
	return a, err
}

func (s *Addresses) Delete(ctx context.Context, id int) error {
	if err := s.gate.enter(ctx, s.latency.RecordWrite); err != nil {
		return err
	}
	if err := s.store.DeleteAddress(id); err != nil {
		return notFound("address", id)
	}
	return nil
}

func addressFromInput(a model.Address, in model.AddressInput) model.Address {
	if in.UserID != 0 {
		a.UserID = in.UserID
	}
	a.Street = in.Street
	a.City = in.City
	a.State = in.State
	a.ZipCode = in.ZipCode
	a.Country = in.Country
	return a
}

type Dashboard struct {
	store   *mockdb.Store
	gate    gate
	latency Latency
}

// Stats returns the totals shown on the admin dashboard.
func (s *Dashboard) Stats(ctx context.Context) (mockdb.Counts, error) {
	if err := s.gate.enter(ctx, s.latency.Read); err != nil {
		return mockdb.Counts{}, err
	}
	return s.store.Counts(), nil
}
