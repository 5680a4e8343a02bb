package tests

import (
	"context"
	"fmt"

	"github.com/antinvestor/service-login-consent/apps/default/service/models"
	"github.com/pitabwire/util"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultRandomStringLength = 8

// BaseTestSuite gives every test a fresh in-memory database with the service schema applied.
type BaseTestSuite struct {
	suite.Suite

	database *gorm.DB
}

func (bs *BaseTestSuite) SetupTest() {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", util.RandomString(DefaultRandomStringLength))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	bs.Require().NoError(err)

	sqlDB, err := db.DB()
	bs.Require().NoError(err)
	// one connection keeps the shared in-memory database alive for the whole test
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.User{}, &models.UserPermission{}, &models.Ban{}, &models.LoginAttempt{})
	bs.Require().NoError(err)

	bs.database = db
}

func (bs *BaseTestSuite) TearDownTest() {
	if bs.database == nil {
		return
	}
	sqlDB, err := bs.database.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
	bs.database = nil
}

// DB satisfies repository.DBProvider, reads and writes share the same database.
func (bs *BaseTestSuite) DB(ctx context.Context, _ bool) *gorm.DB {
	return bs.database.WithContext(ctx)
}
