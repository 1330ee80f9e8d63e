package integration

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/studio-roster/internal/status"
	"github.com/stacklok/studio-roster/internal/studio"
	"github.com/stacklok/studio-roster/test-integration/roster-api/helpers"
)

const attended = "Cancel check in"

func participant(category, id, first, last, belt string, checkins ...string) helpers.FakeParticipant {
	events := make([]studio.CheckinEvent, 0, len(checkins))
	for _, ts := range checkins {
		events = append(events, studio.CheckinEvent{Status: attended, Timestamp: ts})
	}
	return helpers.FakeParticipant{
		Category: category,
		Participant: studio.Participant{
			ParticipantID:  id,
			StudentID:      "s-" + id,
			RegistrationID: "r-" + id,
			FirstName:      first,
			LastName:       last,
			RankName:       belt,
		},
		Events: events,
	}
}

var _ = Describe("Roster Refresh Integration", Label("roster"), func() {
	var (
		tempDir      string
		fakeStudio   *helpers.FakeStudio
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("roster-test-")

		fakeStudio = helpers.NewFakeStudio(
			participant("Teens", "p2", "Grace", "Hopper", "Black Belt", "2024-01-01 16:00:00"),
			participant("Kids", "p1", "Ada", "Lovelace", "Yellow Belt", "2024-01-01 15:00:00", "2024-01-01 14:00:00"),
			helpers.FakeParticipant{
				Category: "Kids",
				Participant: studio.Participant{
					ParticipantID: "p3", FirstName: "Absent", LastName: "Student", RankName: "White Belt",
				},
				Events: []studio.CheckinEvent{{Status: "Checked in", Timestamp: "2024-01-01 13:00:00"}},
			},
		)

		configFile := helpers.WriteConfigYAML(tempDir, fakeStudio.BaseURL(), "30m")

		var err error
		serverHelper, err = helpers.NewServerTestHelper(ctx, configFile)
		Expect(err).NotTo(HaveOccurred())

		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		fakeStudio.Close()
		cleanupTempDir(tempDir)
	})

	Context("Startup refresh", func() {
		It("should publish the checked-in students ordered by start time", func() {
			students := serverHelper.WaitForStudents(2, 5*time.Second)

			Expect(students[0].Name).To(Equal("Ada Lovelace"))
			Expect(students[0].Belt).To(Equal("Yellow Belt"))
			Expect(students[0].StartDisplay).To(Equal("07:00 am"))
			Expect(students[0].EndDisplay).To(Equal("09:00 am"))

			Expect(students[1].Name).To(Equal("Grace Hopper"))
			Expect(students[1].StartDisplay).To(Equal("09:00 am"))
			Expect(students[1].EndDisplay).To(Equal("10:00 am"))
		})

		It("should report a completed refresh", func() {
			syncStatus, err := serverHelper.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(syncStatus.Phase).To(Equal(status.SyncPhaseComplete))
			Expect(syncStatus.StudentCount).To(Equal(2))
			Expect(syncStatus.LastSyncTime).NotTo(BeNil())
			Expect(syncStatus.LastRunID).NotTo(BeEmpty())
		})

		It("should stay healthy", func() {
			resp, err := serverHelper.GetHealth()
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Context("Manual refresh", func() {
		It("should pick up new check-ins without waiting for the interval", func() {
			serverHelper.WaitForStudents(2, 5*time.Second)

			fakeStudio.SetParticipants(
				participant("Kids", "p1", "Ada", "Lovelace", "Yellow Belt", "2024-01-01 14:00:00"),
				participant("Kids", "p4", "Hedy", "Lamarr", "Green Belt", "2024-01-01 13:30:00"),
				participant("Teens", "p2", "Grace", "Hopper", "Black Belt", "2024-01-01 16:00:00"),
			)

			resp, err := serverHelper.ForceRefresh()
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			students := serverHelper.WaitForStudents(3, 5*time.Second)
			Expect(students[0].Name).To(Equal("Hedy Lamarr"))
			Expect(students[0].StartDisplay).To(Equal("06:30 am"))
		})
	})

	Context("Studio failure", func() {
		It("should keep serving the previous roster", func() {
			serverHelper.WaitForStudents(2, 5*time.Second)
			callsBefore := fakeStudio.TokenCalls()

			fakeStudio.FailListing(true)
			resp, err := serverHelper.ForceRefresh()
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Eventually(func() (status.SyncPhase, error) {
				syncStatus, err := serverHelper.GetStatus()
				if err != nil {
					return "", err
				}
				return syncStatus.Phase, nil
			}, 5*time.Second, 100*time.Millisecond).Should(Equal(status.SyncPhaseFailed))

			Expect(fakeStudio.TokenCalls()).To(BeNumerically(">", callsBefore))

			students, err := serverHelper.GetStudents()
			Expect(err).NotTo(HaveOccurred())
			Expect(students).To(HaveLen(2))

			syncStatus, err := serverHelper.GetStatus()
			Expect(err).NotTo(HaveOccurred())
			Expect(syncStatus.LastErrorKind).To(Equal("TransportFailure"))
			Expect(syncStatus.AttemptCount).To(Equal(1))

			resp, err = serverHelper.GetReadiness()
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
