package store_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/ateliercolor/presstrack/internal/config"
	st "github.com/ateliercolor/presstrack/internal/store"
	"github.com/ateliercolor/presstrack/internal/store/model"
)

const (
	insertJobStm = "INSERT INTO jobs (id, client_name, machine_type, status, status_known, quantity, version, created_at, updated_at) VALUES ('%s', '%s', '%s', '%s', TRUE, 1, %d, '%s', '%s');"
)

func insertJob(db *gorm.DB, id uuid.UUID, client, machine, status string, version int64) {
	now := time.Now().UTC().Format(time.RFC3339)
	tx := db.Exec(fmt.Sprintf(insertJobStm, id, client, machine, status, version, now, now))
	Expect(tx.Error).To(BeNil())
}

var _ = Describe("job store", Ordered, func() {
	var (
		s      st.Store
		gormdb *gorm.DB
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM transitions;")
		gormdb.Exec("DELETE FROM jobs;")
	})

	AfterAll(func() {
		s.Close()
	})

	Context("list", func() {
		It("successfully lists all jobs", func() {
			insertJob(gormdb, uuid.New(), "client-1", "ROLAND", "DRAFT", 1)
			insertJob(gormdb, uuid.New(), "client-2", "XEROX", "PRINTING", 3)

			jobs, err := s.Job().List(context.TODO(), st.NewJobQueryFilter())
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
		})

		It("filters by machine type", func() {
			insertJob(gormdb, uuid.New(), "client-1", "ROLAND", "DRAFT", 1)
			insertJob(gormdb, uuid.New(), "client-2", "XEROX", "DRAFT", 1)

			jobs, err := s.Job().List(context.TODO(), st.NewJobQueryFilter().ByMachineType("XEROX"))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ClientName).To(Equal("client-2"))
		})

		It("filters by status", func() {
			insertJob(gormdb, uuid.New(), "client-1", "ROLAND", "DRAFT", 1)
			insertJob(gormdb, uuid.New(), "client-2", "ROLAND", "PRINTING", 2)
			insertJob(gormdb, uuid.New(), "client-3", "ROLAND", "PRINTED", 3)

			jobs, err := s.Job().List(context.TODO(), st.NewJobQueryFilter().ByStatus("PRINTING", "PRINTED"))
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(2))
		})
	})

	Context("get", func() {
		It("returns the job with ordered history", func() {
			jobID := uuid.New()
			insertJob(gormdb, jobID, "client-1", "ROLAND", "PRINTING", 3)

			_, err := s.Job().ApplyTransition(context.TODO(), jobID, 3, st.JobUpdate{
				Status:      "PRINTED",
				StatusKnown: true,
				Version:     4,
				UpdatedAt:   time.Now().UTC(),
			}, &model.Transition{
				FromStatus: "PRINTING",
				ToStatus:   "PRINTED",
				ActorRole:  "roland-operator",
				ActorID:    "op-1",
				At:         time.Now().UTC(),
				Seq:        4,
			})
			Expect(err).To(BeNil())

			job, err := s.Job().Get(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("PRINTED"))
			Expect(job.Version).To(Equal(int64(4)))
			Expect(job.History).To(HaveLen(1))
			Expect(job.History[0].ToStatus).To(Equal("PRINTED"))
		})

		It("returns ErrRecordNotFound for an unknown id", func() {
			_, err := s.Job().Get(context.TODO(), uuid.New())
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("create", func() {
		It("creates a job and assigns an id", func() {
			job, err := s.Job().Create(context.TODO(), model.Job{
				ClientName:  "client-1",
				MachineType: "OTHER",
				Status:      "DRAFT",
				StatusKnown: true,
				Quantity:    5,
				Version:     1,
			})
			Expect(err).To(BeNil())
			Expect(job.ID).ToNot(Equal(uuid.Nil))

			stored, err := s.Job().Get(context.TODO(), job.ID)
			Expect(err).To(BeNil())
			Expect(stored.ClientName).To(Equal("client-1"))
		})
	})

	Context("apply transition", func() {
		It("bumps the version and appends the history entry", func() {
			jobID := uuid.New()
			insertJob(gormdb, jobID, "client-1", "ROLAND", "READY_FOR_PRINT", 2)

			job, err := s.Job().ApplyTransition(context.TODO(), jobID, 2, st.JobUpdate{
				Status:      "PRINTING",
				StatusKnown: true,
				Version:     3,
				UpdatedAt:   time.Now().UTC(),
			}, &model.Transition{
				FromStatus: "READY_FOR_PRINT",
				ToStatus:   "PRINTING",
				ActorRole:  "roland-operator",
				ActorID:    "op-1",
				At:         time.Now().UTC(),
				Seq:        3,
			})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("PRINTING"))
			Expect(job.Version).To(Equal(int64(3)))
			Expect(job.History).To(HaveLen(1))
		})

		It("accepts a no-op update without a history entry", func() {
			jobID := uuid.New()
			insertJob(gormdb, jobID, "client-1", "ROLAND", "PRINTING", 5)

			job, err := s.Job().ApplyTransition(context.TODO(), jobID, 5, st.JobUpdate{
				Status:      "PRINTING",
				StatusKnown: true,
				Version:     6,
				UpdatedAt:   time.Now().UTC(),
			}, nil)
			Expect(err).To(BeNil())
			Expect(job.Version).To(Equal(int64(6)))
			Expect(job.History).To(BeEmpty())
		})

		It("rejects a stale write", func() {
			jobID := uuid.New()
			insertJob(gormdb, jobID, "client-1", "ROLAND", "READY_FOR_PRINT", 7)

			_, err := s.Job().ApplyTransition(context.TODO(), jobID, 6, st.JobUpdate{
				Status:      "PRINTING",
				StatusKnown: true,
				Version:     7,
				UpdatedAt:   time.Now().UTC(),
			}, nil)
			Expect(err).To(MatchError(st.ErrStaleWrite))

			job, err := s.Job().Get(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("READY_FOR_PRINT"))
			Expect(job.Version).To(Equal(int64(7)))
		})

		It("reports a missing job", func() {
			_, err := s.Job().ApplyTransition(context.TODO(), uuid.New(), 1, st.JobUpdate{
				Status:      "PRINTING",
				StatusKnown: true,
				Version:     2,
				UpdatedAt:   time.Now().UTC(),
			}, nil)
			Expect(err).To(MatchError(st.ErrRecordNotFound))
		})
	})

	Context("transaction", func() {
		It("rolls back an uncommitted transition", func() {
			jobID := uuid.New()
			insertJob(gormdb, jobID, "client-1", "ROLAND", "READY_FOR_PRINT", 1)

			ctx, err := s.NewTransactionContext(context.TODO())
			Expect(err).To(BeNil())

			_, err = s.Job().ApplyTransition(ctx, jobID, 1, st.JobUpdate{
				Status:      "PRINTING",
				StatusKnown: true,
				Version:     2,
				UpdatedAt:   time.Now().UTC(),
			}, nil)
			Expect(err).To(BeNil())

			_, err = st.Rollback(ctx)
			Expect(err).To(BeNil())

			job, err := s.Job().Get(context.TODO(), jobID)
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("READY_FOR_PRINT"))
			Expect(job.Version).To(Equal(int64(1)))
		})
	})

	Context("statistics", func() {
		It("counts jobs per status", func() {
			insertJob(gormdb, uuid.New(), "client-1", "ROLAND", "PRINTING", 1)
			insertJob(gormdb, uuid.New(), "client-2", "ROLAND", "PRINTING", 1)
			insertJob(gormdb, uuid.New(), "client-3", "XEROX", "DELIVERED", 1)

			stats, err := s.Statistics(context.TODO())
			Expect(err).To(BeNil())
			Expect(stats.Total).To(Equal(3))
			Expect(stats.ByStatus["PRINTING"]).To(Equal(2))
			Expect(stats.ByStatus["DELIVERED"]).To(Equal(1))
		})
	})
})
