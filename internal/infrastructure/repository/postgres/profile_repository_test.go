package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestGetProfileDecodesTags(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"user_id", "area", "district", "birth_date", "gender", "income_range", "personal_tags", "household_tags"}).
		AddRow("u-1", "서울특별시", "마포구", "1990-03-01", "여자", "중위소득 50%", []byte(`["청년"]`), []byte(`[]`))
	mock.ExpectQuery("FROM users").WithArgs("u-1").WillReturnRows(rows)

	p, err := NewProfileRepository(db).GetProfile(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if p.District != "마포구" || len(p.PersonalTags) != 1 || p.PersonalTags[0] != "청년" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestGetProfileMissingUserIsEmpty(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	mock.ExpectQuery("FROM users").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	p, err := NewProfileRepository(db).GetProfile(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if !p.IsEmpty() {
		t.Fatalf("expected empty profile, got %+v", p)
	}
}

func TestGetProfileSkipsQueryWithoutUser(t *testing.T) {
	db, mock, done := newDBWithMock(t)
	defer done()

	if _, err := NewProfileRepository(db).GetProfile(context.Background(), ""); err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
