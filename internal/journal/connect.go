// Package journal mirrors hub activity into a SQL audit log. It is
// write-behind only; the hub never reads its state back from here.
package journal

import (
	"fmt"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zulandar/agenthud/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDSN builds a DSN for the mysql driver from discrete settings.
func MySQLDSN(m config.MySQLConfig) string {
	c := gomysql.NewConfig()
	c.User = m.User
	c.Passwd = m.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	c.DBName = m.Database
	c.ParseTime = true
	return c.FormatDSN()
}

// Open connects to the configured journal database and migrates it.
func Open(cfg config.JournalConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = MySQLDSN(cfg.MySQL)
		}
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("journal: unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// An in-memory database exists per connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("journal: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
