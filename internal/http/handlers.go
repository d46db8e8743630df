package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"kiosk/internal/booze"
	"kiosk/internal/domain"
	"kiosk/internal/parser"
	"kiosk/internal/repository"
	"kiosk/internal/service"
)

type Server struct {
	engine   *gin.Engine
	products *service.ProductService
	orders   *service.OrderService
	ledger   *service.LedgerService
	members  *service.MemberService
	rooms    repository.RoomRepository
}

func NewServer(
	products *service.ProductService,
	orders *service.OrderService,
	ledger *service.LedgerService,
	members *service.MemberService,
	rooms repository.RoomRepository,
) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	s := &Server{engine: r, products: products, orders: orders, ledger: ledger, members: members, rooms: rooms}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.engine.Group("/api/v1")
	{
		rooms := v1.Group("/rooms/:room")
		rooms.GET("/products", s.roomProducts)
		rooms.POST("/quickbuy", s.quickbuy)
		rooms.GET("/members/:member", s.userInfo)
		rooms.POST("/members/:member/buy/:product", s.menuSale)

		v1.POST("/rooms", s.createRoom)
		v1.POST("/members", s.createMember)
		v1.POST("/products", s.createProduct)
		v1.GET("/products", s.listProducts)
		v1.POST("/products/toggle", s.toggleProducts)
		v1.POST("/payments", s.recordPayment)
		v1.DELETE("/payments/:id", s.reversePayment)
		v1.DELETE("/sales/:id", s.reverseSale)
	}
}

// saleStatus итог быстрой покупки для отрисовки
type saleStatus struct {
	Member       *domain.Member   `json:"member"`
	Products     []domain.Product `json:"products"`
	Total        int64            `json:"total"`
	TotalDisplay string           `json:"total_display"`
	Promille     float64          `json:"promille"`
	BallmerPeak  bool             `json:"ballmer_peak"`
	BallmerMin   int              `json:"ballmer_minutes"`
	BallmerSec   int              `json:"ballmer_seconds"`
	MultibuyHint bool             `json:"multibuy_hint"`
}

type quickbuyReq struct {
	Quickbuy string `json:"quickbuy"`
}

// @Summary Quickbuy
// @Tags rooms
// @Accept json
// @Produce json
// @Param room path int true "Room ID"
// @Param input body quickbuyReq true "Command line"
// @Success 200 {object} saleStatus
// @Failure 400 {object} map[string]string
// @Failure 402 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /rooms/{room}/quickbuy [post]
func (s *Server) quickbuy(c *gin.Context) {
	roomID, err := parseID(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
		return
	}
	room, err := s.rooms.GetByID(c, roomID)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": "room not found"})
		return
	}
	var req quickbuyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	line := strings.TrimSpace(req.Quickbuy)
	if line == "" {
		// пустая строка — просто прилавок
		s.roomProductsResponse(c, roomID)
		return
	}

	username, boughtIDs, err := parser.Parse(line)
	if err != nil {
		qerr, ok := err.(*parser.QuickBuyError)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "invalid quickbuy",
			"correct":   qerr.ParsedPart,
			"incorrect": qerr.FailedPart,
			// указатель на место ошибки: ~~~~^
			"error_ptr": strings.Repeat("~", len(qerr.ParsedPart)) + "^",
		})
		return
	}

	member, err := s.members.GetActiveByUsername(c, username)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": "member not found"})
		return
	}

	if len(boughtIDs) == 0 {
		s.userMenuResponse(c, member)
		return
	}

	now := time.Now()
	products := make([]*domain.Product, 0, len(boughtIDs))
	for _, id := range boughtIDs {
		p, err := s.products.GetForSale(c, id, roomID, now)
		if err != nil {
			c.JSON(mapErrorToStatus(err), gin.H{"error": "product not found"})
			return
		}
		products = append(products, p)
	}

	order := service.OrderFromProducts(member, room, products)
	if err := s.orders.Execute(c, order); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}

	promille, err := s.members.Promille(c, member)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	peaking, bpMin, bpSec := booze.BallmerPeak(promille)
	hint := false
	if len(boughtIDs) == 1 {
		hint, _ = s.members.MultibuyHint(c, member.ID, now)
	}

	bought := make([]domain.Product, 0, len(order.Items))
	for _, it := range order.Items {
		bought = append(bought, *it.Product)
	}
	c.JSON(http.StatusOK, saleStatus{
		Member:       member,
		Products:     bought,
		Total:        order.Total(),
		TotalDisplay: domain.PriceDisplay(order.Total()),
		Promille:     promille,
		BallmerPeak:  peaking,
		BallmerMin:   bpMin,
		BallmerSec:   bpSec,
		MultibuyHint: hint,
	})
}

// @Summary Buy a single product from the menu
// @Tags rooms
// @Produce json
// @Param room path int true "Room ID"
// @Param member path int true "Member ID"
// @Param product path int true "Product ID"
// @Success 200 {object} saleStatus
// @Failure 402 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /rooms/{room}/members/{member}/buy/{product} [post]
func (s *Server) menuSale(c *gin.Context) {
	roomID, err := parseID(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
		return
	}
	memberID, err := parseID(c.Param("member"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member"})
		return
	}
	productID, err := parseID(c.Param("product"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product"})
		return
	}

	room, err := s.rooms.GetByID(c, roomID)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": "room not found"})
		return
	}
	info, err := s.members.Info(c, memberID)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": "member not found"})
		return
	}
	member := info.Member

	p, err := s.products.GetForSale(c, productID, roomID, time.Now())
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": "product not found"})
		return
	}

	order := service.OrderFromProducts(member, room, []*domain.Product{p})
	if err := s.orders.Execute(c, order); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}

	promille, _ := s.members.Promille(c, member)
	peaking, bpMin, bpSec := booze.BallmerPeak(promille)
	c.JSON(http.StatusOK, saleStatus{
		Member:       member,
		Products:     []domain.Product{*p},
		Total:        order.Total(),
		TotalDisplay: domain.PriceDisplay(order.Total()),
		Promille:     promille,
		BallmerPeak:  peaking,
		BallmerMin:   bpMin,
		BallmerSec:   bpSec,
	})
}

// @Summary Active products for a room
// @Tags rooms
// @Produce json
// @Param room path int true "Room ID"
// @Success 200 {array} domain.Product
// @Router /rooms/{room}/products [get]
func (s *Server) roomProducts(c *gin.Context) {
	roomID, err := parseID(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room"})
		return
	}
	s.roomProductsResponse(c, roomID)
}

func (s *Server) roomProductsResponse(c *gin.Context, roomID int64) {
	list, err := s.products.ActiveForRoom(c, roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) userMenuResponse(c *gin.Context, member *domain.Member) {
	promille, err := s.members.Promille(c, member)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	peaking, bpMin, bpSec := booze.BallmerPeak(promille)
	c.JSON(http.StatusOK, saleStatus{
		Member:      member,
		Promille:    promille,
		BallmerPeak: peaking,
		BallmerMin:  bpMin,
		BallmerSec:  bpSec,
	})
}

// @Summary Member info: last sales and payment
// @Tags rooms
// @Produce json
// @Param room path int true "Room ID"
// @Param member path int true "Member ID"
// @Success 200 {object} service.MemberInfo
// @Failure 404 {object} map[string]string
// @Router /rooms/{room}/members/{member} [get]
func (s *Server) userInfo(c *gin.Context) {
	memberID, err := parseID(c.Param("member"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid member"})
		return
	}
	info, err := s.members.Info(c, memberID)
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": "member not found"})
		return
	}
	c.JSON(http.StatusOK, info)
}

type createRoomReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// @Summary Create room
// @Tags admin
// @Accept json
// @Produce json
// @Param input body createRoomReq true "Room"
// @Success 201 {object} domain.Room
// @Router /rooms [post]
func (s *Server) createRoom(c *gin.Context) {
	var req createRoomReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	room := domain.Room{Name: req.Name, Description: req.Description}
	if err := s.rooms.Create(c, &room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, room)
}

type createMemberReq struct {
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Gender    string `json:"gender"`
	Balance   int64  `json:"balance"`
}

// @Summary Create member
// @Tags admin
// @Accept json
// @Produce json
// @Param input body createMemberReq true "Member"
// @Success 201 {object} domain.Member
// @Failure 400 {object} map[string]string
// @Router /members [post]
func (s *Server) createMember(c *gin.Context) {
	var req createMemberReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	m, err := s.members.Create(c, domain.Member{
		Username:  req.Username,
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
		Gender:    domain.Gender(req.Gender),
		Balance:   req.Balance,
		Active:    true,
	})
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, m)
}

type createProductReq struct {
	Name             string     `json:"name"`
	Price            int64      `json:"price"`
	Active           bool       `json:"active"`
	StartDate        *time.Time `json:"start_date"`
	Quantity         *int64     `json:"quantity"`
	DeactivateDate   *time.Time `json:"deactivate_date"`
	AlcoholContentML float64    `json:"alcohol_content_ml"`
	Rooms            []int64    `json:"rooms"`
}

// @Summary Create product
// @Tags admin
// @Accept json
// @Produce json
// @Param input body createProductReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Create(c, domain.Product{
		Name:             req.Name,
		Price:            req.Price,
		Active:           req.Active,
		StartDate:        req.StartDate,
		Quantity:         req.Quantity,
		DeactivateDate:   req.DeactivateDate,
		AlcoholContentML: req.AlcoholContentML,
		Rooms:            req.Rooms,
	})
	if err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary List products with computed activation
// @Tags admin
// @Produce json
// @Param activated query string false "yes or no"
// @Success 200 {array} domain.Product
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	var activated *bool
	switch c.Query("activated") {
	case "yes":
		v := true
		activated = &v
	case "no":
		v := false
		activated = &v
	}
	list, err := s.products.ListByActivation(c, activated)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, list)
}

type toggleProductsReq struct {
	IDs []int64 `json:"ids"`
}

// @Summary Toggle products active flag, resets deactivate date
// @Tags admin
// @Accept json
// @Param input body toggleProductsReq true "Product IDs"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /products/toggle [post]
func (s *Server) toggleProducts(c *gin.Context) {
	var req toggleProductsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.products.ToggleActive(c, req.IDs); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type recordPaymentReq struct {
	MemberID int64 `json:"member_id"`
	Amount   int64 `json:"amount"`
}

// @Summary Record a cash payment
// @Tags admin
// @Accept json
// @Produce json
// @Param input body recordPaymentReq true "Payment"
// @Success 201 {object} domain.Payment
// @Failure 404 {object} map[string]string
// @Router /payments [post]
func (s *Server) recordPayment(c *gin.Context) {
	var req recordPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	payment := domain.Payment{MemberID: req.MemberID, Amount: req.Amount}
	if err := s.ledger.RecordPayment(c, &payment); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// @Summary Reverse a recorded payment
// @Tags admin
// @Param id path string true "Payment ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /payments/{id} [delete]
func (s *Server) reversePayment(c *gin.Context) {
	if err := s.ledger.ReversePaymentByID(c, c.Param("id")); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Reverse a recorded sale, refunds the member
// @Tags admin
// @Param id path string true "Sale ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /sales/{id} [delete]
func (s *Server) reverseSale(c *gin.Context) {
	if err := s.ledger.ReverseSaleByID(c, c.Param("id")); err != nil {
		c.JSON(mapErrorToStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func mapErrorToStatus(err error) int {
	switch err {
	case service.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrStregforbud:
		return http.StatusPaymentRequired
	case domain.ErrNoMoreInventory:
		return http.StatusConflict
	case repository.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
