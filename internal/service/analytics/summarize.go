package analytics

import (
	"sort"
	"time"

	"marketplace-core/internal/domain"
)

// Period is the half-open window [From, To).
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && t.Before(p.To)
}

// Previous is the window of equal length that ends where p starts.
func (p Period) Previous() Period {
	return Period{From: p.From.Add(-p.To.Sub(p.From)), To: p.From}
}

type Summary struct {
	Period    Period           `json:"period"`
	Sales     SalesSummary     `json:"sales"`
	Orders    OrdersSummary    `json:"orders"`
	Customers CustomersSummary `json:"customers"`
	Products  ProductsSummary  `json:"products"`
}

// SalesSummary excludes cancelled and refunded orders. Growth is a fraction:
// 0.25 means 25% above the previous window.
type SalesSummary struct {
	TotalCents int64        `json:"totalCents"`
	Growth     float64      `json:"growth"`
	Chart      []ChartPoint `json:"chart"`
}

type ChartPoint struct {
	Date       string `json:"date"`
	TotalCents int64  `json:"totalCents"`
	Orders     int    `json:"orders"`
}

type OrdersSummary struct {
	Total    int                        `json:"total"`
	Growth   float64                    `json:"growth"`
	ByStatus map[domain.OrderStatus]int `json:"byStatus"`
}

type CustomersSummary struct {
	Total     int     `json:"total"`
	New       int     `json:"new"`
	Returning int     `json:"returning"`
	Growth    float64 `json:"growth"`
}

type ProductsSummary struct {
	Total      int            `json:"total"`
	TopSelling []TopProduct   `json:"topSelling"`
	LowStock   []LowStockItem `json:"lowStock"`
}

type TopProduct struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	RevenueCents int64  `json:"revenueCents"`
}

type LowStockItem struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}

// Summarize computes the dashboard figures for period from a snapshot of
// orders and products. It does not modify its inputs. Orders outside period
// and its previous window only count towards telling new customers from
// returning ones. LowStock reflects the products as given, not the period.
func Summarize(orders []domain.Order, products []domain.Product, period Period) Summary {
	prev := period.Previous()
	sum := Summary{
		Period: period,
		Orders: OrdersSummary{ByStatus: make(map[domain.OrderStatus]int, len(domain.AllOrderStatuses()))},
		Sales:  SalesSummary{Chart: emptyChart(period)},
	}
	for _, st := range domain.AllOrderStatuses() {
		sum.Orders.ByStatus[st] = 0
	}

	var (
		prevSales     int64
		prevOrders    int
		firstOrderAt  = map[string]time.Time{}
		curCustomers  = map[string]bool{}
		prevCustomers = map[string]bool{}
		top           = map[string]*TopProduct{}
		chartIndex    = map[string]int{}
	)
	for i, pt := range sum.Sales.Chart {
		chartIndex[pt.Date] = i
	}

	for _, o := range orders {
		if first, ok := firstOrderAt[o.CustomerID]; !ok || o.CreatedAt.Before(first) {
			firstOrderAt[o.CustomerID] = o.CreatedAt
		}

		switch {
		case period.Contains(o.CreatedAt):
			sum.Orders.Total++
			sum.Orders.ByStatus[o.Status]++
			curCustomers[o.CustomerID] = true
			if o.Status.Voided() {
				continue
			}
			sum.Sales.TotalCents += o.TotalCents
			if i, ok := chartIndex[dayKey(o.CreatedAt)]; ok {
				sum.Sales.Chart[i].TotalCents += o.TotalCents
				sum.Sales.Chart[i].Orders++
			}
			for _, it := range o.Items {
				tp, ok := top[it.ProductID]
				if !ok {
					tp = &TopProduct{ProductID: it.ProductID, Name: it.Name}
					top[it.ProductID] = tp
				}
				tp.Quantity += it.Quantity
				tp.RevenueCents += it.TotalCents
			}
		case prev.Contains(o.CreatedAt):
			prevOrders++
			prevCustomers[o.CustomerID] = true
			if !o.Status.Voided() {
				prevSales += o.TotalCents
			}
		}
	}

	sum.Sales.Growth = growth(float64(sum.Sales.TotalCents), float64(prevSales), prevOrders)
	sum.Orders.Growth = growth(float64(sum.Orders.Total), float64(prevOrders), prevOrders)

	sum.Customers.Total = len(curCustomers)
	for id := range curCustomers {
		if period.Contains(firstOrderAt[id]) {
			sum.Customers.New++
		}
	}
	sum.Customers.Returning = sum.Customers.Total - sum.Customers.New
	sum.Customers.Growth = growth(float64(len(curCustomers)), float64(len(prevCustomers)), prevOrders)

	sum.Products = summarizeProducts(products, top)
	return sum
}

// growth is (cur-prev)/prev, or 0 when the previous window had no orders or
// a zero base.
func growth(cur, prev float64, prevOrders int) float64 {
	if prevOrders == 0 || prev == 0 {
		return 0
	}
	return (cur - prev) / prev
}

func summarizeProducts(products []domain.Product, top map[string]*TopProduct) ProductsSummary {
	names := make(map[string]string, len(products))
	out := ProductsSummary{
		Total:      len(products),
		TopSelling: make([]TopProduct, 0, len(top)),
		LowStock:   []LowStockItem{},
	}
	for _, p := range products {
		names[p.ID] = p.Name
		if p.Inventory.IsLow() {
			out.LowStock = append(out.LowStock, LowStockItem{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  p.Inventory.Quantity,
				Threshold: p.Inventory.LowStockThreshold,
			})
		}
		for _, v := range p.Variants {
			if v.Inventory.IsLow() {
				out.LowStock = append(out.LowStock, LowStockItem{
					ProductID: p.ID,
					VariantID: v.ID,
					Name:      p.Name + " - " + v.Name,
					Quantity:  v.Inventory.Quantity,
					Threshold: v.Inventory.LowStockThreshold,
				})
			}
		}
	}
	sort.Slice(out.LowStock, func(i, j int) bool {
		a, b := out.LowStock[i], out.LowStock[j]
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.VariantID < b.VariantID
	})

	for _, tp := range top {
		item := *tp
		if name, ok := names[item.ProductID]; ok {
			item.Name = name
		}
		out.TopSelling = append(out.TopSelling, item)
	}
	sort.Slice(out.TopSelling, func(i, j int) bool {
		a, b := out.TopSelling[i], out.TopSelling[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if a.RevenueCents != b.RevenueCents {
			return a.RevenueCents > b.RevenueCents
		}
		return a.ProductID < b.ProductID
	})
	return out
}

const maxChartDays = 366

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// emptyChart has one zero bucket per UTC day touched by period. Windows
// longer than a year get no chart.
func emptyChart(period Period) []ChartPoint {
	chart := []ChartPoint{}
	if !period.From.Before(period.To) {
		return chart
	}
	from := period.From.UTC()
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for n := 0; day.Before(period.To); n++ {
		if n == maxChartDays {
			return []ChartPoint{}
		}
		chart = append(chart, ChartPoint{Date: dayKey(day)})
		day = day.AddDate(0, 0, 1)
	}
	return chart
}
