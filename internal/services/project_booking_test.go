package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VolunteerHub/server/internal/models"
)

func createProject(t *testing.T, ctx context.Context, ps ProjectService, createdBy, capacity int, city string) int {
	t.Helper()
	id, err := ps.CreateProject(ctx, &models.Project{
		Title:        "Beach cleanup",
		Description:  "Pick up litter along the shore",
		City:         city,
		Category:     "environment",
		Capacity:     capacity,
		DepositCents: 2500,
		CreatedBy:    createdBy,
	})
	require.NoError(t, err)
	return id
}

func TestProjectModerationFlow(t *testing.T) {
	ctx := setupDB(t)
	us := NewUserService()
	ps := NewProjectService()

	adminID := createAccount(t, ctx, us, "ann", models.RoleAdmin)
	projectID := createProject(t, ctx, ps, adminID, 10, "Berlin")

	p, err := ps.GetProjectById(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectDraft, p.Status)

	// drafts are invisible to the public listing
	listed, err := ps.ListPublished(ctx, "", "", 0, 50)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, ps.Publish(ctx, projectID))

	listed, err = ps.ListPublished(ctx, "Berlin", "", 0, 50)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, projectID, listed[0].ID)

	// city filter excludes non-matching rows
	listed, err = ps.ListPublished(ctx, "Hamburg", "", 0, 50)
	require.NoError(t, err)
	assert.Empty(t, listed)

	// publish is not re-applicable
	assert.ErrorIs(t, ps.Publish(ctx, projectID), models.ErrInvalidTransition)

	require.NoError(t, ps.Archive(ctx, projectID))
	assert.ErrorIs(t, ps.Archive(ctx, projectID), models.ErrInvalidTransition)

	// archived projects drop out of the listing
	listed, err = ps.ListPublished(ctx, "", "", 0, 50)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestBookingCapacityAndDuplicates(t *testing.T) {
	ctx := setupDB(t)
	us := NewUserService()
	ps := NewProjectService()
	bs := NewBookingService()

	adminID := createAccount(t, ctx, us, "ann", models.RoleAdmin)
	projectID := createProject(t, ctx, ps, adminID, 2, "Berlin")
	require.NoError(t, ps.Publish(ctx, projectID))

	first := createAccount(t, ctx, us, "volunteer1", models.RoleUser)
	second := createAccount(t, ctx, us, "volunteer2", models.RoleUser)
	third := createAccount(t, ctx, us, "volunteer3", models.RoleUser)

	b1, err := bs.Book(ctx, projectID, first)
	require.NoError(t, err)
	assert.Equal(t, models.DepositPending, b1.DepositStatus)

	// double booking by the same volunteer is rejected
	_, err = bs.Book(ctx, projectID, first)
	assert.ErrorIs(t, err, models.ErrAlreadyBooked)

	_, err = bs.Book(ctx, projectID, second)
	require.NoError(t, err)

	// capacity 2 is now exhausted
	_, err = bs.Book(ctx, projectID, third)
	assert.ErrorIs(t, err, models.ErrProjectFull)

	// a refunded deposit frees the spot
	_, err = bs.SetDepositStatus(ctx, b1.ID, first, models.DepositPaid)
	require.NoError(t, err)
	_, err = bs.SetDepositStatus(ctx, b1.ID, first, models.DepositRefunded)
	require.NoError(t, err)

	_, err = bs.Book(ctx, projectID, third)
	require.NoError(t, err)
}

func TestBookingRejectsUnpublishedProject(t *testing.T) {
	ctx := setupDB(t)
	us := NewUserService()
	ps := NewProjectService()
	bs := NewBookingService()

	adminID := createAccount(t, ctx, us, "ann", models.RoleAdmin)
	projectID := createProject(t, ctx, ps, adminID, 5, "Berlin")
	userID := createAccount(t, ctx, us, "volunteer", models.RoleUser)

	_, err := bs.Book(ctx, projectID, userID)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = bs.Book(ctx, 9999, userID)
	assert.ErrorIs(t, err, models.ErrProjectNotFound)
}

func TestConcurrentBookingRespectsCapacity(t *testing.T) {
	ctx := setupDB(t)
	us := NewUserService()
	ps := NewProjectService()
	bs := NewBookingService()

	adminID := createAccount(t, ctx, us, "ann", models.RoleAdmin)
	projectID := createProject(t, ctx, ps, adminID, 3, "Berlin")
	require.NoError(t, ps.Publish(ctx, projectID))

	var userIDs []int
	for i := 0; i < 6; i++ {
		userIDs = append(userIDs, createAccount(t, ctx, us, fmt.Sprintf("volunteer%d", i), models.RoleUser))
	}

	var wg sync.WaitGroup
	booked := make(chan int, len(userIDs))
	for _, id := range userIDs {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			if _, err := bs.Book(ctx, projectID, userID); err == nil {
				booked <- userID
			}
		}(id)
	}
	wg.Wait()
	close(booked)

	var winners int
	for range booked {
		winners++
	}
	assert.Equal(t, 3, winners, "bookings must not exceed project capacity")
}

func TestDepositStateMachine(t *testing.T) {
	ctx := setupDB(t)
	us := NewUserService()
	ps := NewProjectService()
	bs := NewBookingService()

	adminID := createAccount(t, ctx, us, "ann", models.RoleAdmin)
	projectID := createProject(t, ctx, ps, adminID, 5, "Berlin")
	require.NoError(t, ps.Publish(ctx, projectID))

	userID := createAccount(t, ctx, us, "volunteer", models.RoleUser)
	otherID := createAccount(t, ctx, us, "stranger", models.RoleUser)

	booking, err := bs.Book(ctx, projectID, userID)
	require.NoError(t, err)

	// only the booking owner may move the deposit
	_, err = bs.SetDepositStatus(ctx, booking.ID, otherID, models.DepositPaid)
	assert.ErrorIs(t, err, models.ErrForbidden)

	// pending cannot jump straight to refunded
	_, err = bs.SetDepositStatus(ctx, booking.ID, userID, models.DepositRefunded)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	paid, err := bs.SetDepositStatus(ctx, booking.ID, userID, models.DepositPaid)
	require.NoError(t, err)
	assert.Equal(t, models.DepositPaid, paid.DepositStatus)

	forfeited, err := bs.SetDepositStatus(ctx, booking.ID, userID, models.DepositForfeited)
	require.NoError(t, err)
	assert.Equal(t, models.DepositForfeited, forfeited.DepositStatus)

	// forfeited is terminal
	_, err = bs.SetDepositStatus(ctx, booking.ID, userID, models.DepositRefunded)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
