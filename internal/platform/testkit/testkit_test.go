package testkit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hamba/avro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chiro/erp/internal/platform/contracts"
	"github.com/chiro/erp/internal/platform/httpapi/dto"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func TestNewSQLiteDB(t *testing.T) {
	db := NewSQLiteDB(t, &widget{})
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)

	var n int64
	require.NoError(t, db.Model(&widget{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestNewMockDB(t *testing.T) {
	db, mock := NewMockDB(t)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "widgets"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	var n int64
	require.NoError(t, db.Model(&widget{}).Count(&n).Error)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = rec.Record(context.Background(), "a")
		_ = rec.Record(context.Background(), "b")
	}()

	assert.True(t, rec.WaitFor(2, time.Second))
	assert.Equal(t, []string{"a", "b"}, rec.Items())
	assert.False(t, rec.WaitFor(3, 20*time.Millisecond))

	rec.FailWith(errors.New("boom"))
	assert.EqualError(t, rec.Record(context.Background(), "c"), "boom")
	assert.Equal(t, 3, rec.Len())
}

func TestFixturesMatchContracts(t *testing.T) {
	catalog := contracts.Default()
	tenant := uuid.New()
	placed := OrderPlacedFixture(tenant, uuid.New())
	registered := CustomerRegisteredFixture(tenant)

	fixtures := map[string]any{
		contracts.EventOrderPlaced:           placed,
		contracts.EventOrderCancelled:        OrderCancelledFixture(placed),
		contracts.EventCustomerRegistered:    registered,
		contracts.EventCustomerStatusChanged: CustomerStatusChangedFixture(registered, "suspended"),
	}
	for eventType, fixture := range fixtures {
		t.Run(eventType, func(t *testing.T) {
			c, err := catalog.Lookup(eventType)
			require.NoError(t, err)
			_, err = avro.Marshal(c.Schema, fixture)
			assert.NoError(t, err)
		})
	}
	assert.Equal(t, tenant.String(), placed.TenantID)
}

func TestNewTestContext(t *testing.T) {
	c, w := NewTestContext(t, http.MethodPost, "/orders", map[string]string{"currency": "EUR"})

	var body map[string]string
	require.NoError(t, c.ShouldBindJSON(&body))
	assert.Equal(t, "EUR", body["currency"])

	c.JSON(http.StatusCreated, dto.NewSuccessResponse(gin.H{"id": "1"}))
	var data map[string]string
	resp := DecodeResponse(t, w, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "1", data["id"])
}

func TestDoJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/echo", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(c.GetHeader("Authorization")))
	})

	w := DoJSON(t, router, http.MethodPost, "/echo", "tok", map[string]int{"a": 1})
	var auth string
	DecodeResponse(t, w, &auth)
	assert.Equal(t, "Bearer tok", auth)
}

func TestStartPostgres(t *testing.T) {
	cfg := StartPostgres(t)
	assert.NotZero(t, cfg.Port)
	assert.Equal(t, "erp_test", cfg.DBName)
}

func TestStartKafka(t *testing.T) {
	brokers := StartKafka(t)
	assert.NotEmpty(t, brokers)
}
