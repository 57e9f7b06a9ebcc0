package i18n

type entry map[string]string

var catalog = map[string]entry{
	"language_selection": {
		"ru": "🌐 Выберите язык / Tilni tanlang / Choose language / Dil seçin",
	},
	"lang.ru": {"ru": "🇷🇺 Русский"},
	"lang.uz": {"ru": "🇺🇿 O'zbek"},
	"lang.en": {"ru": "🇬🇧 English"},
	"lang.tr": {"ru": "🇹🇷 Türkçe"},

	"welcome": {
		"ru": "🏫 Добро пожаловать в Oxbridge International School! 👋\n\nНапишите ваш номер телефона в формате:\n+998 XX XXX XX XX",
		"uz": "🏫 Oxbridge International Schoolga xush kelibsiz! 👋\n\nTelefon raqamingizni quyidagi formatda yozing:\n+998 XX XXX XX XX",
		"en": "🏫 Welcome to Oxbridge International School! 👋\n\nPlease share your phone number in format:\n+998 XX XXX XX XX",
		"tr": "🏫 Oxbridge International School'a hoş geldiniz! 👋\n\nTelefon numaranızı şu formatta yazın:\n+998 XX XXX XX XX",
	},
	"share_contact": {
		"ru": "📱 Отправить номер",
		"uz": "📱 Raqamni yuborish",
		"en": "📱 Share phone number",
		"tr": "📱 Numarayı paylaş",
	},
	"invalid_phone": {
		"ru": "Пожалуйста, введите корректный номер телефона в формате +998 XX XXX XX XX",
		"uz": "Iltimos, telefon raqamini to'g'ri formatda kiriting: +998 XX XXX XX XX",
		"en": "Please enter a valid phone number in format +998 XX XXX XX XX",
		"tr": "Lütfen geçerli bir telefon numarası girin: +998 XX XXX XX XX",
	},
	"ask_parent_name": {
		"ru": "Как к вам обращаться? Напишите ваше имя.",
		"uz": "Sizga qanday murojaat qilaylik? Ismingizni yozing.",
		"en": "How should we address you? Please type your name.",
		"tr": "Size nasıl hitap edelim? Lütfen adınızı yazın.",
	},
	"invalid_parent_name": {
		"ru": "Пожалуйста, напишите имя текстом (до 100 символов).",
		"uz": "Iltimos, ismingizni matn bilan yozing (100 belgigacha).",
		"en": "Please type your name as text (up to 100 characters).",
		"tr": "Lütfen adınızı metin olarak yazın (en fazla 100 karakter).",
	},
	"children_count": {
		"ru": "Сколько у вас детей?",
		"uz": "Nechta farzandingiz bor?",
		"en": "How many children do you have?",
		"tr": "Kaç çocuğunuz var?",
	},
	"child_age": {
		"ru": "Возраст ребёнка #{num}?",
		"uz": "{num}-farzandingizning yoshi?",
		"en": "Age of child #{num}?",
		"tr": "{num}. çocuğunuzun yaşı?",
	},
	"age.3-6": {
		"ru": "3-6 лет",
		"uz": "3-6 yosh",
		"en": "3-6 years",
		"tr": "3-6 yaş",
	},
	"age.7-10": {
		"ru": "7-10 лет",
		"uz": "7-10 yosh",
		"en": "7-10 years",
		"tr": "7-10 yaş",
	},
	"age.11-14": {
		"ru": "11-14 лет",
		"uz": "11-14 yosh",
		"en": "11-14 years",
		"tr": "11-14 yaş",
	},
	"age.15-18": {
		"ru": "15-18 лет",
		"uz": "15-18 yosh",
		"en": "15-18 years",
		"tr": "15-18 yaş",
	},
	"program_interest": {
		"ru": "Какая программа интересует?",
		"uz": "Qaysi dastur sizni qiziqtiradi?",
		"en": "Which program are you interested in?",
		"tr": "Hangi programa ilgi duyuyorsunuz?",
	},
	"program.kindergarten": {
		"ru": "💒 Детский сад",
		"uz": "💒 Bolalar bog'chasi",
		"en": "💒 Kindergarten",
		"tr": "💒 Anaokulu",
	},
	"program.russian": {
		"ru": "📚 Русская школа",
		"uz": "📚 Rus maktabi",
		"en": "📚 Russian School",
		"tr": "📚 Rus Okulu",
	},
	"program.ib": {
		"ru": "🎓 IB программа",
		"uz": "🎓 IB dasturi",
		"en": "🎓 IB Program",
		"tr": "🎓 IB Programı",
	},
	"program.consultation": {
		"ru": "❓ Нужна консультация",
		"uz": "❓ Maslahat kerak",
		"en": "❓ Need consultation",
		"tr": "❓ Danışmaya ihtiyacım var",
	},
	"choose_option": {
		"ru": "Пожалуйста, выберите один из вариантов ниже.",
		"uz": "Iltimos, quyidagi variantlardan birini tanlang.",
		"en": "Please choose one of the options below.",
		"tr": "Lütfen aşağıdaki seçeneklerden birini seçin.",
	},
	"handoff": {
		"ru": "Спасибо! ✅\n\nНаш менеджер свяжется с вами в ближайшее время,\nчтобы ответить на ваши вопросы и рассчитать\nстоимость обучения.\n\n⏰ Время работы: Пн-Пт, 9:00-18:00\n📞 Срочная связь: {phone}\n\nПока ждёте, подпишитесь на наш канал:",
		"uz": "Rahmat! ✅\n\nMenejerimiz tez orada siz bilan bog'lanadi,\nsavollaringizga javob beradi va ta'lim narxini\nhisoblab beradi.\n\n⏰ Ish vaqti: Dush-Juma, 9:00-18:00\n📞 Tezkor aloqa: {phone}\n\nKutib turganda, kanalimizga obuna bo'ling:",
		"en": "Thank you! ✅\n\nOur manager will contact you soon to answer\nyour questions and calculate the tuition cost.\n\n⏰ Working hours: Mon-Fri, 9:00-18:00\n📞 Urgent contact: {phone}\n\nWhile you wait, subscribe to our channel:",
		"tr": "Teşekkürler! ✅\n\nYöneticimiz en kısa sürede sizinle iletişime geçecek,\nsorularınızı yanıtlayacak ve öğrenim ücretini hesaplayacak.\n\n⏰ Çalışma saatleri: Pzt-Cum, 9:00-18:00\n📞 Acil iletişim: {phone}\n\nBeklerken kanalımıza abone olun:",
	},
	"menu": {
		"ru": "Чем могу помочь?",
		"uz": "Sizga qanday yordam bera olaman?",
		"en": "How can I help you?",
		"tr": "Size nasıl yardımcı olabilirim?",
	},
	"menu.book_tour": {
		"ru": "📅 Записаться на экскурсию",
		"uz": "📅 Ekskursiyaga yozilish",
		"en": "📅 Book a tour",
		"tr": "📅 Tur rezervasyonu",
	},
	"menu.addresses": {
		"ru": "📍 Адреса кампусов",
		"uz": "📍 Kampus manzillari",
		"en": "📍 Campus addresses",
		"tr": "📍 Kampüs adresleri",
	},
	"menu.contact_manager": {
		"ru": "👤 Связаться с менеджером",
		"uz": "👤 Menejer bilan bog'lanish",
		"en": "👤 Contact manager",
		"tr": "👤 Yönetici ile iletişim",
	},
	"menu.channel": {
		"ru": "📢 Наш канал",
		"uz": "📢 Bizning kanal",
		"en": "📢 Our channel",
		"tr": "📢 Kanalımız",
	},
	"select_campus": {
		"ru": "📅 Запись на экскурсию\n\nВыберите кампус:",
		"uz": "📅 Ekskursiyaga yozilish\n\nKampusni tanlang:",
		"en": "📅 Tour booking\n\nSelect campus:",
		"tr": "📅 Tur rezervasyonu\n\nKampüs seçin:",
	},
	"select_date": {
		"ru": "Выберите дату:",
		"uz": "Sanani tanlang:",
		"en": "Select date:",
		"tr": "Tarih seçin:",
	},
	"select_time": {
		"ru": "Выберите время:",
		"uz": "Vaqtni tanlang:",
		"en": "Select time:",
		"tr": "Saat seçin:",
	},
	"next_week": {
		"ru": "Следующая неделя →",
		"uz": "Keyingi hafta →",
		"en": "Next week →",
		"tr": "Gelecek hafta →",
	},
	"invalid_slot": {
		"ru": "Это время уже недоступно. Пожалуйста, выберите другой вариант.",
		"uz": "Bu vaqt endi mavjud emas. Iltimos, boshqa variantni tanlang.",
		"en": "That slot is no longer available. Please pick another option.",
		"tr": "Bu zaman artık uygun değil. Lütfen başka bir seçenek seçin.",
	},
	"tour_confirmed": {
		"ru": "✅ Вы записаны на экскурсию!\n\n📍 {campus}\n📅 {date}\n⏰ {time}\n\nАдрес: {address}\n📍 Карта: {map}\n\nМы напомним вам за день до визита.\nДо встречи! 🏫",
		"uz": "✅ Siz ekskursiyaga yozildingiz!\n\n📍 {campus}\n📅 {date}\n⏰ {time}\n\nManzil: {address}\n📍 Xarita: {map}\n\nTashrif kunidan bir kun oldin eslatamiz.\nKo'rishguncha! 🏫",
		"en": "✅ Tour booked successfully!\n\n📍 {campus}\n📅 {date}\n⏰ {time}\n\nAddress: {address}\n📍 Map: {map}\n\nWe'll remind you one day before the visit.\nSee you! 🏫",
		"tr": "✅ Tur rezervasyonu yapıldı!\n\n📍 {campus}\n📅 {date}\n⏰ {time}\n\nAdres: {address}\n📍 Harita: {map}\n\nZiyaretten bir gün önce hatırlatacağız.\nGörüşürüz! 🏫",
	},
	"tour_reminder": {
		"ru": "👋 Напоминание о завтрашней экскурсии!\n\n📍 {campus}\n📅 Завтра, {date}\n⏰ {time}\n\nАдрес: {address}\n📍 Карта: {map}",
		"uz": "👋 Ertangi ekskursiya haqida eslatma!\n\n📍 {campus}\n📅 Ertaga, {date}\n⏰ {time}\n\nManzil: {address}\n📍 Xarita: {map}",
		"en": "👋 Reminder about tomorrow's tour!\n\n📍 {campus}\n📅 Tomorrow, {date}\n⏰ {time}\n\nAddress: {address}\n📍 Map: {map}",
		"tr": "👋 Yarınki tur hatırlatması!\n\n📍 {campus}\n📅 Yarın, {date}\n⏰ {time}\n\nAdres: {address}\n📍 Harita: {map}",
	},
	"reminder.confirm": {
		"ru": "✅ Буду",
		"uz": "✅ Kelaman",
		"en": "✅ Will attend",
		"tr": "✅ Katılacağım",
	},
	"reminder.reschedule": {
		"ru": "🔄 Перенести",
		"uz": "🔄 Ko'chirish",
		"en": "🔄 Reschedule",
		"tr": "🔄 Erteleme",
	},
	"reminder.cancel": {
		"ru": "❌ Отменить",
		"uz": "❌ Bekor qilish",
		"en": "❌ Cancel",
		"tr": "❌ İptal",
	},
	"attendance_confirmed": {
		"ru": "Отлично, ждём вас! 🏫",
		"uz": "Ajoyib, sizni kutamiz! 🏫",
		"en": "Great, we're looking forward to seeing you! 🏫",
		"tr": "Harika, sizi bekliyoruz! 🏫",
	},
	"reschedule_message": {
		"ru": "Понял. Выберите новое время или наш менеджер свяжется с вами.",
		"uz": "Tushunarli. Yangi vaqtni tanlang yoki menejerimiz siz bilan bog'lanadi.",
		"en": "Understood. Pick a new time, or our manager will contact you.",
		"tr": "Anlaşıldı. Yeni bir zaman seçin ya da yöneticimiz sizinle iletişime geçecek.",
	},
	"cancel_message": {
		"ru": "Экскурсия отменена. Будем рады видеть вас в другой раз!",
		"uz": "Ekskursiya bekor qilindi. Sizni boshqa safar kutamiz!",
		"en": "Your tour has been cancelled. We'd be glad to see you another time!",
		"tr": "Turunuz iptal edildi. Sizi başka bir zaman görmekten memnuniyet duyarız!",
	},
	"no_active_tour": {
		"ru": "У вас нет активной записи на экскурсию.",
		"uz": "Sizda faol ekskursiya yozuvi yo'q.",
		"en": "You don't have an active tour booking.",
		"tr": "Aktif bir tur rezervasyonunuz yok.",
	},
	"post_tour_followup": {
		"ru": "Здравствуйте! 👋\n\nСпасибо, что посетили Oxbridge!\n\nЕсли у вас остались вопросы или вы готовы\nобсудить поступление - напишите, и наш\nменеджер с радостью поможет.",
		"uz": "Salom! 👋\n\nOxbridgega tashrif buyurganingiz uchun rahmat!\n\nAgar savollaringiz bo'lsa yoki qabul haqida\ngaplashmoqchi bo'lsangiz - yozing, menejerimiz\nmamnuniyat bilan yordam beradi.",
		"en": "Hello! 👋\n\nThank you for visiting Oxbridge!\n\nIf you have any questions or are ready to\ndiscuss enrollment - write to us, and our\nmanager will be happy to help.",
		"tr": "Merhaba! 👋\n\nOxbridge'i ziyaret ettiğiniz için teşekkürler!\n\nSorularınız varsa veya kayıt hakkında\nkonuşmaya hazırsanız - yazın, yöneticimiz\nmemnuniyetle yardımcı olacak.",
	},
	"manager_will_contact": {
		"ru": "Отлично! Наш менеджер свяжется с вами в ближайшее время.",
		"uz": "Ajoyib! Menejerimiz tez orada siz bilan bog'lanadi.",
		"en": "Great! Our manager will contact you soon.",
		"tr": "Harika! Yöneticimiz en kısa sürede sizinle iletişime geçecek.",
	},
	"note_forwarded": {
		"ru": "Спасибо! Ваше сообщение передано менеджеру.",
		"uz": "Rahmat! Xabaringiz menejerga yetkazildi.",
		"en": "Thank you! Your message has been passed to our manager.",
		"tr": "Teşekkürler! Mesajınız yöneticimize iletildi.",
	},
	"campus_addresses": {
		"ru": "📍 Наши кампусы:\n\n",
		"uz": "📍 Bizning kampuslar:\n\n",
		"en": "📍 Our campuses:\n\n",
		"tr": "📍 Kampüslerimiz:\n\n",
	},
	"try_again_later": {
		"ru": "Извините, сейчас не получилось сохранить ваши данные. Пожалуйста, попробуйте ещё раз чуть позже.",
		"uz": "Kechirasiz, hozir ma'lumotlaringizni saqlab bo'lmadi. Iltimos, birozdan so'ng qayta urinib ko'ring.",
		"en": "Sorry, we couldn't save your details right now. Please try again a little later.",
		"tr": "Üzgünüz, bilgilerinizi şu anda kaydedemedik. Lütfen biraz sonra tekrar deneyin.",
	},
	"rate_limited": {
		"ru": "Слишком много сообщений. Пожалуйста, подождите немного.",
		"uz": "Juda ko'p xabar. Iltimos, biroz kuting.",
		"en": "Too many messages. Please wait a moment.",
		"tr": "Çok fazla mesaj. Lütfen biraz bekleyin.",
	},
}
