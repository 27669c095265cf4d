package scraper

import "sjsage522/pricewatcher/internal/site"

var amazonConfig = SiteConfig{
	Site: site.Amazon,
	PriceLocators: []Locator{
		{Selector: "#corePriceDisplay_desktop_feature_div .a-price-whole"},
		{Selector: "#corePrice_feature_div .a-offscreen"},
		{Selector: "#priceblock_dealprice"},
		{Selector: "#priceblock_ourprice"},
		{Selector: ".a-price .a-offscreen"},
		{Selector: "span.a-price-whole"},
	},
	TitleLocators: []Locator{
		{Selector: "#productTitle"},
		{Selector: "meta[property='og:title']", Attr: "content"},
		{Selector: "title"},
	},
	CouponLocators: []Locator{
		{Selector: "#promoPriceBlockMessage_feature_div .couponLabelText"},
		{Selector: "label[id^='couponText']"},
	},
	Currency:   "₹",
	WaitPolicy: WaitDOMContentLoaded,
}

var flipkartConfig = SiteConfig{
	Site: site.Flipkart,
	PriceLocators: []Locator{
		{Selector: "div.Nx9bqj.CxhGGd"},
		{Selector: "div._30jeq3._16Jk6d"},
		{Selector: "div._30jeq3"},
		{Selector: "div.Nx9bqj"},
	},
	TitleLocators: []Locator{
		{Selector: "span.VU-ZEz"},
		{Selector: "span.B_NuCI"},
		{Selector: "h1"},
	},
	CouponLocators: []Locator{
		{Selector: "div._3j4Zjq span"},
	},
	Currency:   "₹",
	WaitPolicy: WaitLoad,
}

var vijaySalesConfig = SiteConfig{
	Site: site.VijaySales,
	PriceLocators: []Locator{
		{Selector: ".product__price--price"},
		{Selector: "[class*='price']"},
		{Selector: ".price"},
		{Selector: ".product-price"},
	},
	TitleLocators: []Locator{
		{Selector: "h1.product__title"},
		{Selector: "h1"},
		{Selector: "title"},
	},
	CouponLocators: []Locator{
		{Selector: ".product__offers--coupon"},
	},
	Currency:   "₹",
	WaitPolicy: WaitNetworkIdle,
}

// SiteConfigs returns the configuration table for every supported site
func SiteConfigs() []SiteConfig {
	return []SiteConfig{amazonConfig, flipkartConfig, vijaySalesConfig}
}
