package service_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/auth"
	"github.com/ateliercolor/presstrack/internal/config"
	"github.com/ateliercolor/presstrack/internal/events"
	"github.com/ateliercolor/presstrack/internal/projection"
	"github.com/ateliercolor/presstrack/internal/service"
	"github.com/ateliercolor/presstrack/internal/status"
	st "github.com/ateliercolor/presstrack/internal/store"
	"github.com/ateliercolor/presstrack/internal/workflow"
)

const (
	insertJobStm = "INSERT INTO jobs (id, client_name, machine_type, status, status_known, quantity, version, created_at, updated_at) VALUES ('%s', '%s', '%s', '%s', %s, 100, %d, '%s', '%s');"
)

func insertJob(db *gorm.DB, id uuid.UUID, client, machine, jobStatus string, version int64) {
	now := time.Now().UTC().Format(time.RFC3339)
	tx := db.Exec(fmt.Sprintf(insertJobStm, id, client, machine, jobStatus, "TRUE", version, now, now))
	Expect(tx.Error).To(BeNil())
}

func insertLegacyJob(db *gorm.DB, id uuid.UUID, rawStatus string) {
	now := time.Now().UTC().Format(time.RFC3339)
	tx := db.Exec(fmt.Sprintf(insertJobStm, id, "legacy-client", "OTHER", rawStatus, "FALSE", 1, now, now))
	Expect(tx.Error).To(BeNil())
}

func userContext(username string, role status.Role) context.Context {
	return auth.NewTokenContext(context.TODO(), auth.User{ID: username, Username: username, Role: role})
}

var _ = Describe("job service", Ordered, func() {
	var (
		s        st.Store
		gormdb   *gorm.DB
		registry *events.SubscriptionRegistry
		srv      *service.JobService
	)

	BeforeAll(func() {
		db, err := st.InitDB(config.NewDefault())
		Expect(err).To(BeNil())

		s = st.NewStore(db)
		gormdb = db
		Expect(s.InitialMigration()).To(BeNil())
	})

	BeforeEach(func() {
		registry = events.NewSubscriptionRegistry(16)
		broadcaster := events.NewBroadcaster(registry, 32)
		srv = service.NewJobService(s, broadcaster, projection.DefaultThresholds())
	})

	AfterEach(func() {
		gormdb.Exec("DELETE FROM transitions;")
		gormdb.Exec("DELETE FROM jobs;")
	})

	AfterAll(func() {
		s.Close()
	})

	subscribeAll := func() *events.Connection {
		conn := registry.Connect()
		Expect(registry.Authenticate(conn.ID, auth.User{ID: "watch", Username: "watch", Role: status.RolePreparer})).To(Succeed())
		Expect(registry.Subscribe(conn.ID, events.AllJobsScope())).To(Succeed())
		return conn
	}

	Context("create", func() {
		It("creates a draft job by default", func() {
			conn := subscribeAll()

			job, err := srv.CreateJob(userContext("marie", status.RolePreparer), api.JobCreate{
				ClientName:  "Imprimerie Dubois",
				MachineType: "ROLAND",
				Quantity:    500,
			})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("DRAFT"))
			Expect(job.StatusKnown).To(BeTrue())
			Expect(job.Version).To(Equal(int64(1)))

			env := <-conn.Outbox()
			Expect(env.Event.Kind).To(Equal(api.EventJobCreated))
			Expect(env.Event.JobID).To(Equal(job.ID))
		})

		It("accepts raw producer text as initial status", func() {
			job, err := srv.CreateJob(userContext("marie", status.RolePreparer), api.JobCreate{
				ClientName:  "Atelier Nord",
				MachineType: "XEROX",
				Status:      "En cours de préparation",
			})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("IN_PROGRESS"))
		})

		It("rejects an initial status past preparation", func() {
			_, err := srv.CreateJob(userContext("marie", status.RolePreparer), api.JobCreate{
				ClientName:  "Atelier Nord",
				MachineType: "XEROX",
				Status:      "PRINTING",
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrInvalidInitialStatus{}))
		})

		It("rejects creation by a non preparer", func() {
			_, err := srv.CreateJob(userContext("jean", status.RoleRolandOperator), api.JobCreate{
				ClientName:  "Atelier Nord",
				MachineType: "ROLAND",
			})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrCreationForbidden{}))
		})
	})

	Context("list", func() {
		It("filters by machine type and status", func() {
			insertJob(gormdb, uuid.New(), "client-1", "ROLAND", "PRINTING", 3)
			insertJob(gormdb, uuid.New(), "client-2", "XEROX", "PRINTING", 3)
			insertJob(gormdb, uuid.New(), "client-3", "ROLAND", "DRAFT", 1)

			jobs, err := srv.ListJobs(context.TODO(), &service.JobFilter{MachineType: "ROLAND", Statuses: []string{"PRINTING"}})
			Expect(err).To(BeNil())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ClientName).To(Equal("client-1"))
		})
	})

	Context("transition", func() {
		It("applies a legal transition and broadcasts it", func() {
			id := uuid.New()
			insertJob(gormdb, id, "client-1", "ROLAND", "DRAFT", 1)
			conn := subscribeAll()

			job, err := srv.Transition(userContext("marie", status.RolePreparer), id, api.TransitionRequest{Status: "IN_PROGRESS"})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("IN_PROGRESS"))
			Expect(job.Version).To(Equal(int64(2)))
			Expect(job.History).To(HaveLen(1))
			Expect(job.History[0].Seq).To(Equal(int64(2)))

			env := <-conn.Outbox()
			Expect(env.Event.Kind).To(Equal(api.EventJobTransitioned))
			Expect(env.Event.ToStatus).To(Equal("IN_PROGRESS"))
			Expect(env.Event.Seq).To(Equal(int64(2)))
			Expect(env.Event.Job).NotTo(BeNil())
			Expect(env.Event.Job.Status).To(Equal("IN_PROGRESS"))
		})

		It("treats a self transition as a no-op without history or event", func() {
			id := uuid.New()
			insertJob(gormdb, id, "client-1", "ROLAND", "PRINTING", 4)
			conn := subscribeAll()

			job, err := srv.Transition(userContext("jean", status.RoleRolandOperator), id, api.TransitionRequest{Status: "PRINTING"})
			Expect(err).To(BeNil())
			Expect(job.Version).To(Equal(int64(5)))
			Expect(job.History).To(BeEmpty())

			Consistently(conn.Outbox()).ShouldNot(Receive())
		})

		It("leaves the job row untouched when the history write fails", func() {
			id := uuid.New()
			insertJob(gormdb, id, "client-1", "ROLAND", "DRAFT", 1)
			conn := subscribeAll()

			// occupy the seq the next transition will claim so its entry
			// insert fails after the version update succeeded
			now := time.Now().UTC().Format(time.RFC3339)
			tx := gormdb.Exec(fmt.Sprintf(
				"INSERT INTO transitions (id, job_id, seq, from_status, to_status, actor_role, actor_id, at) VALUES ('%s', '%s', 2, 'DRAFT', 'IN_PROGRESS', 'preparer', 'ghost', '%s');",
				uuid.New(), id, now))
			Expect(tx.Error).To(BeNil())

			_, err := srv.Transition(userContext("marie", status.RolePreparer), id, api.TransitionRequest{Status: "IN_PROGRESS"})
			Expect(err).To(HaveOccurred())

			job, getErr := s.Job().Get(context.TODO(), id)
			Expect(getErr).To(BeNil())
			Expect(job.Status).To(Equal("DRAFT"))
			Expect(job.Version).To(Equal(int64(1)))

			Consistently(conn.Outbox()).ShouldNot(Receive())
		})

		It("rejects an illegal transition", func() {
			id := uuid.New()
			insertJob(gormdb, id, "client-1", "ROLAND", "DRAFT", 1)

			_, err := srv.Transition(userContext("marie", status.RolePreparer), id, api.TransitionRequest{Status: "DELIVERED"})
			Expect(err).To(BeAssignableToTypeOf(&workflow.ErrIllegalTransition{}))
		})

		It("requires a comment to send a job back to review", func() {
			id := uuid.New()
			insertJob(gormdb, id, "client-1", "ROLAND", "PRINTING", 4)

			_, err := srv.Transition(userContext("jean", status.RoleRolandOperator), id, api.TransitionRequest{Status: "TO_REVIEW"})
			Expect(err).To(BeAssignableToTypeOf(&workflow.ErrMissingComment{}))

			job, err := srv.Transition(userContext("jean", status.RoleRolandOperator), id, api.TransitionRequest{Status: "TO_REVIEW", Comment: "ink smear"})
			Expect(err).To(BeNil())
			Expect(job.History).To(HaveLen(1))
			Expect(*job.History[0].Comment).To(Equal("ink smear"))
		})

		It("rejects the wrong press operator", func() {
			id := uuid.New()
			insertJob(gormdb, id, "client-1", "ROLAND", "READY_FOR_PRINT", 2)

			_, err := srv.Transition(userContext("paul", status.RoleXeroxOperator), id, api.TransitionRequest{Status: "PRINTING"})
			Expect(err).To(BeAssignableToTypeOf(&workflow.ErrForbidden{}))
		})

		It("lets a preparer pull a legacy status back into preparation", func() {
			id := uuid.New()
			insertLegacyJob(gormdb, id, "statut bizarre 42")

			job, err := srv.Transition(userContext("marie", status.RolePreparer), id, api.TransitionRequest{Status: "IN_PROGRESS"})
			Expect(err).To(BeNil())
			Expect(job.Status).To(Equal("IN_PROGRESS"))
			Expect(job.StatusKnown).To(BeTrue())
			Expect(job.History[0].FromStatus).To(Equal("statut bizarre 42"))
		})

		It("returns not found for an unknown job", func() {
			_, err := srv.Transition(userContext("marie", status.RolePreparer), uuid.New(), api.TransitionRequest{Status: "IN_PROGRESS"})
			Expect(err).To(BeAssignableToTypeOf(&service.ErrResourceNotFound{}))
		})
	})

	Context("history", func() {
		It("returns entries in sequence order", func() {
			id := uuid.New()
			insertJob(gormdb, id, "client-1", "ROLAND", "DRAFT", 1)

			ctx := userContext("marie", status.RolePreparer)
			for _, target := range []string{"IN_PROGRESS", "READY_FOR_PRINT"} {
				_, err := srv.Transition(ctx, id, api.TransitionRequest{Status: target})
				Expect(err).To(BeNil())
			}

			entries, err := srv.GetHistory(context.TODO(), id)
			Expect(err).To(BeNil())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].ToStatus).To(Equal("IN_PROGRESS"))
			Expect(entries[1].ToStatus).To(Equal("READY_FOR_PRINT"))
			Expect(entries[1].Seq).To(BeNumerically(">", entries[0].Seq))
		})
	})
})
