package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strumline/guitar-crm-api/internal/models"
)

func TestVisibilityForAdmin(t *testing.T) {
	v := VisibilityFor(models.RoleFlags{IsAdmin: true}, "u1")
	assert.True(t, v.All)
	assert.Empty(t, v.Column)
}

func TestVisibilityForTeacher(t *testing.T) {
	v := VisibilityFor(models.RoleFlags{IsTeacher: true}, "T1")
	assert.False(t, v.All)
	assert.Equal(t, "teacher_id", v.Column)
	assert.Equal(t, "T1", v.Value)
}

func TestVisibilityForStudent(t *testing.T) {
	v := VisibilityFor(models.RoleFlags{IsStudent: true}, "S1")
	assert.Equal(t, "student_id", v.Column)
	assert.Equal(t, "S1", v.Value)
}

func TestVisibilityForNoRole(t *testing.T) {
	v := VisibilityFor(models.RoleFlags{}, "u1")
	assert.False(t, v.All)
	assert.Equal(t, "id", v.Column)
	assert.Equal(t, NoAccessID, v.Value)
}

func TestVisibilityAdminOutranksTeacher(t *testing.T) {
	v := VisibilityFor(models.RoleFlags{IsAdmin: true, IsTeacher: true}, "u1")
	assert.Equal(t, VisibilityFor(models.RoleFlags{IsAdmin: true}, "u1"), v)
}

func TestVisibilityTeacherOutranksStudent(t *testing.T) {
	v := VisibilityFor(models.RoleFlags{IsTeacher: true, IsStudent: true}, "u1")
	assert.Equal(t, "teacher_id", v.Column)
}

func TestVisibilityApply(t *testing.T) {
	conditions := []string{"1=1"}
	args := []interface{}{"pending"}

	v := VisibilityFor(models.RoleFlags{IsTeacher: true}, "T1")
	conditions, args = v.Apply("a", conditions, args)

	assert.Equal(t, []string{"1=1", "a.teacher_id = $2"}, conditions)
	assert.Equal(t, []interface{}{"pending", "T1"}, args)
}

func TestVisibilityApplyAdminNoop(t *testing.T) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	v := VisibilityFor(models.RoleFlags{IsAdmin: true}, "u1")
	conditions, args = v.Apply("a", conditions, args)

	assert.Equal(t, []string{"1=1"}, conditions)
	assert.Empty(t, args)
}

func TestVisibilityApplyNoAlias(t *testing.T) {
	conditions, args := VisibilityFor(models.RoleFlags{}, "u1").Apply("", []string{"1=1"}, nil)
	assert.Equal(t, []string{"1=1", "id = $1"}, conditions)
	assert.Equal(t, []interface{}{NoAccessID}, args)
}
