package leavetype_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/leave-management/internal/core/database"
	"github.com/frahmantamala/leave-management/internal/leavetype"
	leaveTypePostgres "github.com/frahmantamala/leave-management/internal/leavetype/postgres"
	"github.com/frahmantamala/leave-management/internal/transport"
	"github.com/frahmantamala/leave-management/pkg/logger"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

var _ = Describe("LeaveType Handler Integration", func() {
	var (
		db     *gorm.DB
		router chi.Router
	)

	BeforeEach(func() {
		var err error
		db, err = database.OpenInMemory()
		Expect(err).NotTo(HaveOccurred())

		service := leavetype.NewService(leaveTypePostgres.NewLeaveTypeRepository(db), logger.Discard())
		handler := leavetype.NewHandler(transport.NewBaseHandler(logger.Discard()), service)

		router = chi.NewRouter()
		router.Get("/leave-types", handler.GetLeaveTypes)
		router.Post("/leave-types", handler.CreateLeaveType)
		router.Get("/leave-types/{id}", handler.GetLeaveType)
		router.Put("/leave-types/{id}", handler.UpdateLeaveType)
		router.Delete("/leave-types/{id}", handler.DeleteLeaveType)
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("creates, reads and deactivates a leave type", func() {
		w := do(http.MethodPost, "/leave-types", `{"name":"Annual","max_days":24}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var created leavetype.LeaveType
		Expect(json.NewDecoder(w.Body).Decode(&created)).To(Succeed())
		Expect(created.Name).To(Equal("Annual"))

		w = do(http.MethodGet, "/leave-types/1", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		w = do(http.MethodDelete, "/leave-types/1", "")
		Expect(w.Code).To(Equal(http.StatusNoContent))

		w = do(http.MethodGet, "/leave-types", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		var list leavetype.LeaveTypesResponse
		Expect(json.NewDecoder(w.Body).Decode(&list)).To(Succeed())
		Expect(list.LeaveTypes).To(BeEmpty())
	})

	It("maps duplicates to 409", func() {
		Expect(do(http.MethodPost, "/leave-types", `{"name":"Sick"}`).Code).To(Equal(http.StatusCreated))
		w := do(http.MethodPost, "/leave-types", `{"name":"Sick"}`)
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("LEAVE_TYPE_EXISTS"))
	})

	It("rejects malformed ids and bodies", func() {
		Expect(do(http.MethodGet, "/leave-types/abc", "").Code).To(Equal(http.StatusBadRequest))
		Expect(do(http.MethodPost, "/leave-types", `{`).Code).To(Equal(http.StatusBadRequest))
		Expect(do(http.MethodGet, "/leave-types/77", "").Code).To(Equal(http.StatusNotFound))
	})
})
