package service

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/contact-service/internal/repository/memory"
	apperrors "github.com/spec-kit/contact-service/pkg/util"
)

func newContactService() *ContactService {
	return NewContactService(ContactDependencies{ContactRepo: memory.NewContacts()})
}

func TestContactService_CRUD(t *testing.T) {
	svc := newContactService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "u-1", ContactInput{
		FirstName:     " Bob ",
		LastName:      "Jones",
		ContactNumber: "+15550100",
		EmailAddress:  "bob@x.com",
	})
	require.NoError(t, err)
	require.Equal(t, "Bob", created.FirstName)
	require.Equal(t, "u-1", created.UserID)

	number := "+15550199"
	updated, err := svc.Update(ctx, "u-1", created.ID, ContactUpdateInput{ContactNumber: &number})
	require.NoError(t, err)
	require.Equal(t, "+15550199", updated.ContactNumber)
	require.Equal(t, "Jones", updated.LastName)

	got, err := svc.Get(ctx, "u-1", created.ID)
	require.NoError(t, err)
	require.Equal(t, "+15550199", got.ContactNumber)

	require.NoError(t, svc.Delete(ctx, "u-1", created.ID))
	_, err = svc.Get(ctx, "u-1", created.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestContactService_OtherUsersContactsAreHidden(t *testing.T) {
	svc := newContactService()
	ctx := context.Background()
	created, err := svc.Create(ctx, "u-1", ContactInput{FirstName: "Bob"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "u-2", created.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	err = svc.Delete(ctx, "u-2", created.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	page, err := svc.List(ctx, "u-2", ContactListFilter{})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestContactService_RequiresAName(t *testing.T) {
	svc := newContactService()
	ctx := context.Background()

	_, err := svc.Create(ctx, "u-1", ContactInput{EmailAddress: "x@x.com"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	created, err := svc.Create(ctx, "u-1", ContactInput{LastName: "Jones"})
	require.NoError(t, err)
	empty := ""
	_, err = svc.Update(ctx, "u-1", created.ID, ContactUpdateInput{LastName: &empty})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestContactService_ListPaging(t *testing.T) {
	svc := newContactService()
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		_, err := svc.Create(ctx, "u-1", ContactInput{FirstName: "Person", LastName: fmt.Sprintf("%02d", i)})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, "u-1", ContactListFilter{Page: 3})
	require.NoError(t, err)
	require.Equal(t, 25, page.Total)
	require.Equal(t, defaultPageSize, page.PageSize)
	require.Len(t, page.Items, 5)
	require.Equal(t, "20", page.Items[0].LastName)

	page, err = svc.List(ctx, "u-1", ContactListFilter{Page: 0, PageSize: 1000, Search: "person"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, maxPageSize, page.PageSize)
	require.Len(t, page.Items, 25)
}

func TestContactService_ListHugePageIsEmpty(t *testing.T) {
	svc := newContactService()
	ctx := context.Background()
	_, err := svc.Create(ctx, "u-1", ContactInput{FirstName: "Bob"})
	require.NoError(t, err)

	page, err := svc.List(ctx, "u-1", ContactListFilter{Page: math.MaxInt, PageSize: maxPageSize})
	require.NoError(t, err)
	require.Equal(t, maxPage, page.Page)
	require.Empty(t, page.Items)
	require.Equal(t, 1, page.Total)
}

func TestContactService_SearchWildcardsAreLiteral(t *testing.T) {
	svc := newContactService()
	ctx := context.Background()
	_, err := svc.Create(ctx, "u-1", ContactInput{FirstName: "Bob"})
	require.NoError(t, err)

	for _, term := range []string{"_", "%"} {
		page, err := svc.List(ctx, "u-1", ContactListFilter{Search: term})
		require.NoError(t, err)
		require.Empty(t, page.Items, term)
	}
}
