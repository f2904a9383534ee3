package boot

import (
	"log"
	"time"

	"tix/src/common"
	"tix/src/config"
	"tix/src/db"
	"tix/src/lib"
	"tix/src/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.UserType{},
		&models.Sale{},
		&models.ItemGroup{},
		&models.Item{},
		&models.Field{},
		&models.ItemField{},
		&models.Order{},
		&models.OrderLine{},
		&models.OrderLineItem{},
		&models.OrderLineField{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler starts the background sweep that finalizes orders whose
// status window has lapsed. Expiry is still enforced lazily on read; the
// sweep only keeps the table tidy.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	j, err := sched.NewJob(
		gocron.DurationJob(config.OngoingWindow()),
		gocron.NewTask(func() {
			common.SweepExpiredOrders(time.Now())
		}),
	)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return
	}
	log.Printf("Job ID: %s %s\n", j.Name(), j.ID().String())
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}
