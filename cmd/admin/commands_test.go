package main

import (
	"bytes"
	"context"
	"proctorportal/backend/internal/models"
	"proctorportal/backend/internal/registration"
	"proctorportal/backend/internal/storage/memstore"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedDemo(t *testing.T) {
	store := memstore.New()
	reg := registration.NewService(store)
	var out bytes.Buffer

	require.NoError(t, seedDemo(context.Background(), reg, &out))
	require.NoError(t, seedDemo(context.Background(), reg, &out), "seeding is repeatable")

	student, err := store.GetProfile(context.Background(), "demo-student-id")
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, student.Role)
	assert.True(t, student.Approved)

	teacher, err := store.GetProfile(context.Background(), "demo-professor-id")
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, teacher.Role)
	assert.True(t, teacher.Approved, "the demo teacher skips the approval step")
	assert.Contains(t, out.String(), "demo-professor-id")
}

func TestListPending(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, listPending(ctx, store, &out))
	assert.Contains(t, out.String(), "No pending profiles.")

	require.NoError(t, store.SaveProfile(ctx, &models.UserProfile{UID: "t1", Username: "Prof", Email: "t1@example.com", Role: models.RoleTeacher}))
	require.NoError(t, store.SaveProfile(ctx, &models.UserProfile{UID: "s1", Role: models.RoleStudent, Approved: true}))
	out.Reset()

	require.NoError(t, listPending(ctx, store, &out))
	assert.Contains(t, out.String(), "t1")
	assert.Contains(t, out.String(), "t1@example.com")
	assert.NotContains(t, out.String(), "s1")
}
