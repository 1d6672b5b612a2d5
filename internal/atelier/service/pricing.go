package service

import (
	"fmt"
	"strings"

	"github.com/bitfantasy/lumi-atelier/internal/atelier/entity"
)

// 定价计算器 —— 纯函数，不碰任何共享状态。
// price(jewelry) = Σ 宝石价格 + 材质单价 × 克重
// quote_amount   = 工费 + 首饰价格

// JewelryPrice 计算首饰价格
func JewelryPrice(gemstones []entity.Gemstone, material *entity.Material, weight float64) float64 {
	total := 0.0
	for _, g := range gemstones {
		total += g.Price
	}
	if material != nil {
		total += material.SellPrice * weight
	}
	return total
}

// QuoteAmount 计算报价金额
func QuoteAmount(productionCost, jewelryPrice float64) float64 {
	return productionCost + jewelryPrice
}

// QuoteContent 生成报价明细文本。确定性派生，任何输入变化都必须重新生成，
// 保证与 quote_amount 一致，绝不手工编辑。
func QuoteContent(jewelry *entity.Jewelry, mains, subs []entity.Gemstone, material *entity.Material, productionCost float64) string {
	var b strings.Builder

	fmt.Fprintf(&b, "首饰: %s\n", jewelry.Name)
	if len(mains) > 0 {
		b.WriteString("主石: ")
		for i, g := range mains {
			if i > 0 {
				b.WriteString(" + ")
			}
			fmt.Fprintf(&b, "%s(%.2f)", g.Name, g.Price)
		}
		b.WriteString("\n")
	}
	if len(subs) > 0 {
		b.WriteString("辅石: ")
		for i, g := range subs {
			if i > 0 {
				b.WriteString(" + ")
			}
			fmt.Fprintf(&b, "%s(%.2f)", g.Name, g.Price)
		}
		b.WriteString("\n")
	}
	if material != nil {
		fmt.Fprintf(&b, "材质: %s × %.2fg @ %.2f = %.2f\n",
			material.Name, jewelry.MaterialWeight, material.SellPrice, material.SellPrice*jewelry.MaterialWeight)
	}
	fmt.Fprintf(&b, "工费: %.2f\n", productionCost)

	jewelryPrice := JewelryPrice(append(append([]entity.Gemstone{}, mains...), subs...), material, jewelry.MaterialWeight)
	fmt.Fprintf(&b, "合计: %.2f", QuoteAmount(productionCost, jewelryPrice))

	return b.String()
}
