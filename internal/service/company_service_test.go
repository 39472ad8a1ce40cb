package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

func TestCompanyCreateAndUpdate(t *testing.T) {
	e := newEnv(t)

	company, err := e.company.Create(e.ctx, e.employee, CompanyInput{
		Name:    ptr(" Initech "),
		Email:   ptr("Office@Initech.test"),
		Phone:   ptr("+49 30 123456"),
		Address: ptr("   "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Initech", company.Name)
	assert.Equal(t, "office@initech.test", company.Email)
	require.NotNil(t, company.Phone)
	assert.Nil(t, company.Address)

	_, err = e.company.Create(e.ctx, e.admin, CompanyInput{Name: ptr("Copy"), Email: ptr("office@initech.test")})
	requireCode(t, err, apperrors.CodeBadUserInput)
	_, err = e.company.Create(e.ctx, e.admin, CompanyInput{Name: ptr("Bad"), Email: ptr("x@y.test"), Phone: ptr("call me")})
	requireCode(t, err, apperrors.CodeBadUserInput)
	_, err = e.company.Create(e.ctx, e.customer, CompanyInput{Name: ptr("Nope"), Email: ptr("n@n.test")})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = e.company.Update(e.ctx, e.admin, company.ID, CompanyInput{PrimaryContactID: &e.hans.ID})
	requireCode(t, err, apperrors.CodeBadUserInput)

	updated, err := e.company.Update(e.ctx, e.admin, e.acme.ID, CompanyInput{PrimaryContactID: &e.hans.ID})
	require.NoError(t, err)
	require.NotNil(t, updated.PrimaryContactID)
	assert.Equal(t, e.hans.ID, *updated.PrimaryContactID)

	cleared, err := e.company.Update(e.ctx, e.admin, e.acme.ID, CompanyInput{PrimaryContactID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.PrimaryContactID)

	actions := e.auditActions()
	assert.Contains(t, actions, audit.ActionCompanyCreate)
	assert.Contains(t, actions, audit.ActionCompanyUpdate)
}

func TestCompanyGetAndList(t *testing.T) {
	e := newEnv(t)

	list, err := e.company.List(e.ctx, e.employee)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Acme", list[0].Name)

	detail, err := e.company.Get(e.ctx, e.employee, e.acme.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Contacts, 2)

	_, err = e.company.Get(e.ctx, e.employee, "missing")
	requireCode(t, err, apperrors.CodeNotFound)
	_, err = e.company.List(e.ctx, e.customer)
	requireCode(t, err, apperrors.CodeForbidden)
}

func TestCompanyDeleteGuards(t *testing.T) {
	e := newEnv(t)
	e.openTicket("keeps acme alive")

	_, err := e.company.Delete(e.ctx, e.employee, e.globex.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = e.company.Delete(e.ctx, e.admin, e.acme.ID)
	requireCode(t, err, apperrors.CodeBadUserInput)

	_, err = e.company.Update(e.ctx, e.admin, e.globex.ID, CompanyInput{PrimaryContactID: &e.marge.ID})
	require.NoError(t, err)
	// acme points at a globex contact; the delete must not leave it dangling
	e.acme.PrimaryContactID = &e.marge.ID
	require.NoError(t, e.repos.Companies.Update(e.ctx, &e.acme))
	deleted, err := e.company.Delete(e.ctx, e.admin, e.globex.ID)
	require.NoError(t, err)
	assert.Equal(t, e.globex.ID, deleted.ID)

	_, err = e.repos.Contacts.GetByID(e.ctx, e.marge.ID)
	assert.True(t, apperrors.IsNotFound(err), "contacts go with their company")
	acme, err := e.repos.Companies.GetByID(e.ctx, e.acme.ID)
	require.NoError(t, err)
	assert.Nil(t, acme.PrimaryContactID)
	assert.Contains(t, e.auditActions(), audit.ActionCompanyDelete)
}

func TestContactLifecycle(t *testing.T) {
	e := newEnv(t)

	contact, err := e.company.CreateContact(e.ctx, e.employee, ContactInput{
		Name: ptr("Peter Acme"), Email: ptr("peter@acme.test"), CompanyID: &e.acme.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, e.acme.ID, contact.CompanyID)

	_, err = e.company.CreateContact(e.ctx, e.employee, ContactInput{
		Name: ptr("Peter Twin"), Email: ptr("PETER@acme.test"), CompanyID: &e.acme.ID,
	})
	requireCode(t, err, apperrors.CodeBadUserInput)
	_, err = e.company.CreateContact(e.ctx, e.employee, ContactInput{
		Name: ptr("Lost"), Email: ptr("lost@acme.test"), CompanyID: ptr("missing"),
	})
	requireCode(t, err, apperrors.CodeBadUserInput)

	_, err = e.company.Update(e.ctx, e.admin, e.acme.ID, CompanyInput{PrimaryContactID: &contact.ID})
	require.NoError(t, err)

	moved, err := e.company.UpdateContact(e.ctx, e.employee, contact.ID, ContactInput{CompanyID: &e.globex.ID})
	require.NoError(t, err)
	assert.Equal(t, e.globex.ID, moved.CompanyID)
	acme, err := e.repos.Companies.GetByID(e.ctx, e.acme.ID)
	require.NoError(t, err)
	assert.Nil(t, acme.PrimaryContactID, "moving a contact clears it as primary of the old company")

	_, err = e.company.DeleteContact(e.ctx, e.employee, contact.ID)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = e.company.DeleteContact(e.ctx, e.admin, contact.ID)
	require.NoError(t, err)

	e.openTicket("pins hans")
	_, err = e.company.DeleteContact(e.ctx, e.admin, e.hans.ID)
	requireCode(t, err, apperrors.CodeBadUserInput)

	actions := e.auditActions()
	assert.Contains(t, actions, audit.ActionContactCreate)
	assert.Contains(t, actions, audit.ActionContactUpdate)
	assert.Contains(t, actions, audit.ActionContactDelete)
}

func TestMyContactInfo(t *testing.T) {
	e := newEnv(t)

	contact, err := e.company.MyContactInfo(e.ctx, e.customer)
	require.NoError(t, err)
	require.NotNil(t, contact)
	assert.Equal(t, e.hans.ID, contact.ID)

	orphan := e.addUser("No Contact", "nobody@else.test", domain.RoleCustomer)
	contact, err = e.company.MyContactInfo(e.ctx, orphan)
	require.NoError(t, err)
	assert.Nil(t, contact)

	_, err = e.company.MyContactInfo(e.ctx, e.employee)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = e.company.MyContactInfo(e.ctx, nil)
	requireCode(t, err, apperrors.CodeUnauthenticated)
}
