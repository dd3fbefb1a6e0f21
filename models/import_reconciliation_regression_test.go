package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/importer"
	"bitbucket.org/atolyemoda/satis_backend/models"
	"bitbucket.org/atolyemoda/satis_backend/utils"
)

// End-to-end reconciliation regression: origin feed creates the client, the
// order and the ledger movement; the courier feed matches by client+date and
// books the payment; replaying the same row is a duplicate and changes
// nothing; a mapping-rule correction retroactively fixes the order via
// recalc; the returns sheet reverses the ledger.
func TestImportReconciliationRegression(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "satis_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	db := config.GetDB()

	// Catalog: one product and one exact rule mapping the sales-log text to it.
	product := models.Product{
		Name:         "Deri Ceket",
		Slug:         "deri-ceket",
		DefaultPrice: decimal.NewFromInt(400),
	}
	if err := db.WithContext(ctx).Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	rule, err := models.CreateItemMappingRule(ctx, &models.NewItemMappingRule{
		SourcePattern: "DERİ CEKET",
		MatchMode:     models.MatchModeExact,
		Priority:      10,
		Outputs: []*models.NewItemMappingOutput{
			{ProductId: &product.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateItemMappingRule: %v", err)
	}

	dataDate := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	qty := 1
	total := decimal.NewFromInt(1200)
	bizimRec := &importer.Record{
		Name:         "Ayşe Yılmaz",
		Phone:        "0532 123 45 67",
		ItemName:     "DERİ CEKET(170,65)",
		Quantity:     &qty,
		TotalAmount:  &total,
		ShipmentDate: &dataDate,
		UniqueKey:    utils.ClientUniqueKey("Ayşe Yılmaz", "0532 123 45 67"),
	}

	// Preview must not write.
	preview, err := models.PreviewImport(ctx, importer.SourceBizim, "bizim.xlsx", []*importer.Record{bizimRec})
	if err != nil {
		t.Fatalf("PreviewImport: %v", err)
	}
	if preview.Created != 1 {
		t.Fatalf("preview created = %d, want 1", preview.Created)
	}
	if len(preview.Sample) != 1 || preview.Sample[0].Name != "Ayşe Yılmaz" {
		t.Fatalf("preview sample = %+v, want the mapped row", preview.Sample)
	}
	var clientCount int64
	if err := db.Model(&models.Client{}).Count(&clientCount).Error; err != nil {
		t.Fatalf("count clients: %v", err)
	}
	if clientCount != 0 {
		t.Fatalf("preview leaked %d clients", clientCount)
	}

	// Commit the origin-feed row.
	summary, err := models.CommitImport(ctx, importer.SourceBizim, "bizim.xlsx", []*importer.Record{bizimRec})
	if err != nil {
		t.Fatalf("CommitImport bizim: %v", err)
	}
	if summary.Created != 1 || summary.Errors != 0 {
		t.Fatalf("bizim summary = %+v, want 1 created", summary)
	}

	var client models.Client
	if err := db.Where("unique_key = ?", "ayse yılmaz|5321234567").First(&client).Error; err != nil {
		t.Fatalf("client by key: %v", err)
	}
	if client.HeightCm == nil || *client.HeightCm != 170 || client.WeightKg == nil || *client.WeightKg != 65 {
		t.Fatalf("client metrics = %v/%v, want 170/65", client.HeightCm, client.WeightKg)
	}

	var order models.Order
	if err := db.Where("client_id = ?", client.ID).First(&order).Error; err != nil {
		t.Fatalf("order for client: %v", err)
	}
	if order.TotalAmount == nil || !order.TotalAmount.Equal(total) {
		t.Fatalf("order total = %v, want 1200", order.TotalAmount)
	}
	if !order.TotalCost.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("order cost = %s, want 400", order.TotalCost)
	}

	var item models.Item
	if err := db.Where("sku = ?", "deri-ceket").First(&item).Error; err != nil {
		t.Fatalf("variant by sku: %v", err)
	}
	onHand, err := models.OnHand(db, item.ID)
	if err != nil {
		t.Fatalf("OnHand: %v", err)
	}
	if !onHand.Equal(decimal.NewFromInt(-1)) {
		t.Fatalf("on-hand = %s, want -1", onHand)
	}

	// Courier feed: same person without a phone, payment within the window.
	deliveryDate := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)
	payAmount := decimal.NewFromInt(1200)
	commission := decimal.NewFromFloat(36.5)
	kargoRec := &importer.Record{
		Name:          "Ayşe Yılmaz",
		Notes:         "1 KOLİ TEKSTİL",
		PaymentAmount: &payAmount,
		FeeCommission: &commission,
		DeliveryDate:  &deliveryDate,
	}
	summary, err = models.CommitImport(ctx, importer.SourceKargo, "kargo.xlsx", []*importer.Record{kargoRec})
	if err != nil {
		t.Fatalf("CommitImport kargo: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("kargo summary = %+v, want 1 updated", summary)
	}

	var payment models.Payment
	if err := db.Where("order_id = ?", order.ID).First(&payment).Error; err != nil {
		t.Fatalf("payment for order: %v", err)
	}
	if !payment.NetAmount.Equal(decimal.NewFromFloat(1163.5)) {
		t.Fatalf("payment net = %s, want 1163.5", payment.NetAmount)
	}
	if err := db.First(&order, order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != models.OrderStatusPaid {
		t.Fatalf("order status = %s, want paid", order.Status)
	}

	// Idempotent replay: same origin row again is a duplicate, nothing moves.
	summary, err = models.CommitImport(ctx, importer.SourceBizim, "bizim.xlsx", []*importer.Record{bizimRec})
	if err != nil {
		t.Fatalf("CommitImport replay: %v", err)
	}
	if summary.Duplicates != 1 || summary.Created != 0 {
		t.Fatalf("replay summary = %+v, want 1 duplicate", summary)
	}
	onHand, _ = models.OnHand(db, item.ID)
	if !onHand.Equal(decimal.NewFromInt(-1)) {
		t.Fatalf("on-hand after replay = %s, want -1", onHand)
	}
	var paymentCount int64
	if err := db.Model(&models.Payment{}).Count(&paymentCount).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if paymentCount != 1 {
		t.Fatalf("payments after replay = %d, want 1", paymentCount)
	}

	// Correct the rule to a 2-pack; recalc must rewrite the order's lines and
	// append the ledger delta, and a second pass must be a no-op.
	active := true
	_, err = models.UpdateItemMappingRule(ctx, rule.ID, &models.NewItemMappingRule{
		SourcePattern: "DERİ CEKET",
		MatchMode:     models.MatchModeExact,
		Priority:      10,
		IsActive:      &active,
		Outputs: []*models.NewItemMappingOutput{
			{ProductId: &product.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("UpdateItemMappingRule: %v", err)
	}
	recalc, err := models.RecalcOrders(ctx, models.RecalcFilter{}, false)
	if err != nil {
		t.Fatalf("RecalcOrders: %v", err)
	}
	if recalc.OrdersUpdated != 1 {
		t.Fatalf("recalc = %+v, want 1 updated", recalc)
	}
	onHand, _ = models.OnHand(db, item.ID)
	if !onHand.Equal(decimal.NewFromInt(-2)) {
		t.Fatalf("on-hand after recalc = %s, want -2", onHand)
	}
	if err := db.First(&order, order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if !order.TotalCost.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("order cost after recalc = %s, want 800", order.TotalCost)
	}
	recalc, err = models.RecalcOrders(ctx, models.RecalcFilter{}, false)
	if err != nil {
		t.Fatalf("RecalcOrders second pass: %v", err)
	}
	if recalc.OrdersUpdated != 0 {
		t.Fatalf("second recalc = %+v, want 0 updated", recalc)
	}

	// Returns sheet: refund reverses the ledger and zeroes the cost.
	returnDate := time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC)
	refund := decimal.NewFromInt(-1200)
	returnRec := &importer.Record{
		Name:     "Ayşe Yılmaz",
		Phone:    "0532 123 45 67",
		ItemName: "DERİ CEKET",
		Action:   importer.ActionRefund,
		Amount:   &refund,
		Date:     &returnDate,
	}
	summary, err = models.CommitImport(ctx, importer.SourceReturns, "iade.xlsx", []*importer.Record{returnRec})
	if err != nil {
		t.Fatalf("CommitImport returns: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("returns summary = %+v, want 1 updated", summary)
	}
	if err := db.First(&order, order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != models.OrderStatusRefunded {
		t.Fatalf("order status = %s, want refunded", order.Status)
	}
	if !order.TotalCost.IsZero() {
		t.Fatalf("refunded order cost = %s, want 0", order.TotalCost)
	}
	onHand, _ = models.OnHand(db, item.ID)
	if !onHand.IsZero() {
		t.Fatalf("on-hand after refund = %s, want 0", onHand)
	}

	// A row with no item description still lands as an order on the generic
	// item, and replaying it is a duplicate, not a second order.
	noItemDate := time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC)
	noItemTotal := decimal.NewFromInt(300)
	noItemRec := &importer.Record{
		Name:         "Fatma Kaya",
		Phone:        "0533 111 22 33",
		TotalAmount:  &noItemTotal,
		ShipmentDate: &noItemDate,
		UniqueKey:    utils.ClientUniqueKey("Fatma Kaya", "0533 111 22 33"),
	}
	summary, err = models.CommitImport(ctx, importer.SourceBizim, "bizim2.xlsx", []*importer.Record{noItemRec})
	if err != nil {
		t.Fatalf("CommitImport no-item row: %v", err)
	}
	if summary.Unmatched != 1 {
		t.Fatalf("no-item summary = %+v, want 1 unmatched", summary)
	}
	var generic models.Item
	if err := db.Where("sku = ?", "genel-urun").First(&generic).Error; err != nil {
		t.Fatalf("generic item: %v", err)
	}
	var fatma models.Client
	if err := db.Where("unique_key = ?", utils.ClientUniqueKey("Fatma Kaya", "0533 111 22 33")).First(&fatma).Error; err != nil {
		t.Fatalf("client for no-item row: %v", err)
	}
	onHand, _ = models.OnHand(db, generic.ID)
	if !onHand.Equal(decimal.NewFromInt(-1)) {
		t.Fatalf("generic on-hand = %s, want -1", onHand)
	}

	summary, err = models.CommitImport(ctx, importer.SourceBizim, "bizim2.xlsx", []*importer.Record{noItemRec})
	if err != nil {
		t.Fatalf("CommitImport no-item replay: %v", err)
	}
	if summary.Duplicates != 1 || summary.Unmatched != 0 {
		t.Fatalf("no-item replay summary = %+v, want 1 duplicate", summary)
	}
	var fatmaOrders int64
	if err := db.Model(&models.Order{}).Where("client_id = ?", fatma.ID).Count(&fatmaOrders).Error; err != nil {
		t.Fatalf("count no-item orders: %v", err)
	}
	if fatmaOrders != 1 {
		t.Fatalf("orders after no-item replay = %d, want 1", fatmaOrders)
	}
	onHand, _ = models.OnHand(db, generic.ID)
	if !onHand.Equal(decimal.NewFromInt(-1)) {
		t.Fatalf("generic on-hand after replay = %s, want -1", onHand)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("satis-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("satis-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=satis_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
