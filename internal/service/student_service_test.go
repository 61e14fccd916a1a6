package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/models"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

func validStudentRequest() StudentRequest {
	return StudentRequest{
		StudentCode: " b12345 ",
		Name:        "Sofía",
		LastName:    "Vargas",
		Email:       "Sofia.Vargas@Alumnos.edu.pe",
		Career:      models.CareerAgriculture,
		Cycle:       4,
	}
}

func TestStudentServiceCreateNormalizes(t *testing.T) {
	st, _, _ := newTestStore(t)
	svc := NewStudentService(st, nil, nil, nil)
	ctx := context.Background()

	student, err := svc.Create(ctx, validStudentRequest())
	require.NoError(t, err)
	assert.Equal(t, "B12345", student.StudentCode)
	assert.Equal(t, "sofia.vargas@alumnos.edu.pe", student.Email)

	dup := validStudentRequest()
	dup.StudentCode = "B12345"
	_, err = svc.Create(ctx, dup)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	bad := validStudentRequest()
	bad.StudentCode = "C1"
	bad.Email = "not-an-email"
	_, err = svc.Create(ctx, bad)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	bad = validStudentRequest()
	bad.StudentCode = "C2"
	bad.Cycle = 13
	_, err = svc.Create(ctx, bad)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceUpdate(t *testing.T) {
	st, _, _ := newTestStore(t)
	svc := NewStudentService(st, nil, nil, nil)
	seedStudent(t, st, "s1", models.CareerNursing)
	seedStudent(t, st, "s2", models.CareerNursing)
	ctx := context.Background()

	req := validStudentRequest()
	req.StudentCode = "AS1"
	updated, err := svc.Update(ctx, "s1", req)
	require.NoError(t, err)
	assert.Equal(t, models.CareerAgriculture, updated.Career)

	req.StudentCode = "as2"
	_, err = svc.Update(ctx, "s1", req)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Update(ctx, "missing", validStudentRequest())
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceDeleteBlockedByOutstandingLoan(t *testing.T) {
	st, _, _ := newTestStore(t)
	ledger := NewInventoryLedger(nil)
	students := NewStudentService(st, nil, nil, nil)
	loans := NewLoanService(st, ledger, nil, nil, LoanServiceConfig{}, nil, nil)
	seedBook(t, st, "b1", models.CareerNursing, 1, 1)
	seedStudent(t, st, "s1", models.CareerNursing)
	ctx := context.Background()

	loan, err := loans.Register(ctx, RegisterLoanRequest{BookID: "b1", StudentID: "s1"})
	require.NoError(t, err)

	err = students.Delete(ctx, "s1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = loans.Return(ctx, loan.ID)
	require.NoError(t, err)
	require.NoError(t, students.Delete(ctx, "s1"))

	_, err = students.Get(ctx, "s1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceList(t *testing.T) {
	st, _, _ := newTestStore(t)
	svc := NewStudentService(st, nil, nil, nil)
	seedStudent(t, st, "s2", models.CareerNursing)
	seedStudent(t, st, "s1", models.CareerComputing)
	seedStudent(t, st, "s3", models.CareerComputing)
	ctx := context.Background()

	all, _, err := svc.List(ctx, models.StudentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s1", all[0].ID)

	computing, _, err := svc.List(ctx, models.StudentFilter{Career: models.CareerComputing, SortBy: "student_code", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, computing, 2)
	assert.Equal(t, "s3", computing[0].ID)

	searched, _, err := svc.List(ctx, models.StudentFilter{Search: "S2@ALUMNOS"})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	assert.Equal(t, "s2", searched[0].ID)

	_, _, err = svc.List(ctx, models.StudentFilter{Career: "law"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
